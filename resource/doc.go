// Package resource tracks the byte-level budgets of a write.
//
// A Controller manages two resources shared by every file of one write:
//
//   - Memory: bytes staged in file queues (tracking plus an optional soft limit)
//   - IO: a token bucket bounding bytes written per second
//
// # Memory Tracking
//
// Staging must never block a producer, so memory is reserved without
// waiting. Exceeding the limit only reports OverMemoryLimit, which the
// dataset writer uses to flush under-sized row groups early:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 256 << 20,
//	})
//
//	rc.ReserveMemory(n)
//	defer rc.ReleaseMemory(n)
//
// # IO Rate Limiting
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 << 20,
//	})
//
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
