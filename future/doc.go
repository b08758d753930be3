// Package future provides a one-shot completion handle for asynchronous work.
//
// A [Future] starts pending and is completed exactly once, either with nil
// (success) or with an error. Any number of goroutines may observe it:
//
//	f := future.New()
//	go func() { f.Complete(doWork()) }()
//
//	select {
//	case <-f.Done():
//	    return f.Err()
//	case <-ctx.Done():
//	    return ctx.Err()
//	}
//
// Completion is modelled after context.Context: Done returns a channel that
// is closed on completion and Err reports the recorded result.
package future
