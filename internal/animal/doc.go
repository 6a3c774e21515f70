// Package animal manages individual animals in a keeper's collection.
//
// Each animal references a location and a species within the same profile.
// Image links and feeding history are embedded documents stored as JSON
// columns on the animal row; they have no meaning outside their animal and
// are always read and written with it.
package animal
