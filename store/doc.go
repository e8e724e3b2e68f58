// Package store holds authcard.SnapshotStore implementations: an
// in-process map and a Redis store shared between instances.
package store
