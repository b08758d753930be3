// Package fs abstracts the local filesystem operations used by the local blob
// store so that tests can inject failures.
//
//   - [File]: an open file being written
//   - [ReadFile]: an open file being read
//   - [FileSystem]: create, remove, mkdir and listing
//
// [OS] is the production implementation and [Afero] adapts any afero.Fs,
// for example an in-memory one. [FaultyFS] wraps any FileSystem and
// fails selected operations:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("part-1", fs.Fault{FailAfterBytes: 1024})
//	ffs.AddRule("events/", fs.Fault{FailOnMkdir: true})
//
// The interface carries no context.Context; local syscalls are not
// interruptible. Context aware access lives in package blobstore.
package fs
