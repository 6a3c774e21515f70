// Package species manages the taxonomic entries in a keeper's collection.
// Species are profile-scoped and referenced by animals.
package species
