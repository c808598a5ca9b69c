// Package asyncx provides a small set of concurrency primitives used by the
// service and infrastructure layers.
//
// # Fire and Forget
//
// [Do] and [DoCtx] launch background work without waiting for it. Panics
// inside the task are recovered and logged, so a misbehaving side effect
// (an email dispatch, an audit hook) can never crash the process.
//
//	asyncx.Do(func() {
//	    if err := mailer.SendTemplatedEmail(ctx, "reset", data, msg); err != nil {
//	        logx.WithError(err).Warn("reset email not delivered")
//	    }
//	})
//
// # Fan-out
//
// [All] runs a set of functions concurrently and collects every result in
// the original order. It returns on the first error but still waits for all
// goroutines to finish, preventing goroutine leaks.
//
// [AllSettled] behaves like [All] but never short-circuits. It always returns
// one [Result] per function so callers can inspect individual outcomes —
// useful for health checks that must report every dependency.
//
//	checks := asyncx.AllSettled(ctx,
//	    func(ctx context.Context) (string, error) { return "postgres", db.PingContext(ctx) },
//	    func(ctx context.Context) (string, error) { return "redis", rdb.Ping(ctx).Err() },
//	)
package asyncx
