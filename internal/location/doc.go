// Package location manages the places in a keeper's collection: vivarium
// rooms, field sites, breeders. Locations are profile-scoped and referenced
// by animals.
package location
