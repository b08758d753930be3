// Package manifest records the files produced by a dataset write.
//
// A manifest is committed once every file of a write is durable. Each
// commit gets the next version number; readers follow the latest version
// to discover a complete set of files.
package manifest
