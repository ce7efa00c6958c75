// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, detachment from request cancellation, and error collection.
//
// # Key Functions
//
// SafeGo: fire-and-forget with panic recovery and a timeout
//
//	async.SafeGo(ctx, 5*time.Second, "call metering", func(ctx context.Context) error {
//		return metering.RecordCall(ctx, projectID)
//	})
//
// WorkerPool: managed pool of concurrent workers
//
//	pool := async.NewWorkerPool(ctx, 10, "usage upsert", 30*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return writeRow(ctx, row)
//	})
//
// Batch: concurrent processing of a slice, collecting all errors
//
//	errs := async.Batch(ctx, rows, 5, "usage upsert", 30*time.Second,
//		func(ctx context.Context, row usageRow) error {
//			return writeRow(ctx, row)
//		})
//
// # Use Cases
//
// Metering increments and audit writes on the request path (SafeGo detaches
// from the request context so a completed request cannot cancel the write),
// and monthly usage rollups in the aggregator command.
package async
