// Package influxdb records husbandry telemetry for Herp Keeper Core.
//
// Feeding events are written as time-series points tagged by profile and
// animal, giving keepers queryable feeding history without bloating the
// relational store. The integration is optional and controlled by the
// influxdb.enabled config flag; when disabled, the application runs
// without telemetry.
package influxdb
