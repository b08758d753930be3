// Package scheduler implements a hierarchical, cost-aware asynchronous task scheduler.
//
// A [Scheduler] admits units of work ([Task]) under an optional [Throttle],
// queues what cannot be admitted yet and reports completion of a whole tree of
// schedulers as a single [future.Future].
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                     root Scheduler                       │
//	│   state · running count · first error · OnFinished       │
//	├───────────────────┬──────────────────┬───────────────────┤
//	│  Throttle (opt.)  │  Queue (FIFO)    │  SubSchedulers    │
//	│  TryAcquire       │  Push / Pop      │  finish callback  │
//	│  Release          │  Purge on abort  │  Close ends child │
//	└───────────────────┴──────────────────┴───────────────────┘
//	              tree-wide cancellation token (shared)
//
// # Lifecycle
//
// Every node starts Running and moves to either Aborted or Ended, never back.
// A root is ended with [Scheduler.End]; a child is ended by closing the
// [SubScheduler] handle returned from [Scheduler.NewSubScheduler]. The
// completion future fires once the node is no longer Running, has no running
// tasks or children and its queue is empty.
//
//	root := scheduler.New(ctx)
//	files := root.NewSubScheduler("files", nil, scheduler.WithThrottle(scheduler.NewThrottle(1)))
//	files.AddSimpleTask("write", func(ctx context.Context) *future.Future {
//	    return pool.Submit(ctx, write)
//	})
//	files.Close()
//	root.End()
//	err := root.Wait(ctx)
//
// # Failure
//
// The first error in a subtree wins. A failed task aborts its node: queued
// tasks are discarded (a [Discarder] is told so) and the error travels to the parent through the child's
// finish callback. Aborting also cancels a token shared by the whole tree, so
// every other node rejects new admissions from then on. Tasks that are already
// running are never pre-empted; they receive the context passed to [New], not
// the cancellation token. Closing a root ends children whose handles are
// still open.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package scheduler
