// Package profile manages keeper accounts.
//
// A profile is the root of a keeper's data: locations, species, animals,
// and images all hang off it. Registration creates an inactive profile
// with a single-use activation key; authentication refuses inactive
// accounts.
package profile
