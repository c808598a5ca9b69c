package asyncx

import (
	"context"
	"fmt"
	"sync"

	"github.com/Abraxas-365/gatekit/pkg/logx"
)

// ─── Fire and Forget ─────────────────────────────────────────────────────────

// Do fires fn in a goroutine and forgets it. A panic inside fn is recovered
// and logged so a background task can never take the process down.
func Do(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// DoCtx fires fn in a goroutine only if ctx is not already done.
// Panics inside fn are recovered and logged.
func DoCtx(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		select {
		case <-ctx.Done():
			return
		default:
			fn(ctx)
		}
	}()
}

func recoverPanic() {
	if r := recover(); r != nil {
		logx.WithField("panic", fmt.Sprintf("%v", r)).Error("asyncx: recovered panic in background task")
	}
}

// ─── All / Settled ────────────────────────────────────────────────────────────

// Result holds the outcome of a single settled async operation.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the result carries no error.
func (r Result[T]) OK() bool { return r.Err == nil }

// All runs all fns concurrently and waits for every one to finish.
// Returns a slice of results in the same order as the input functions.
// If any function returns an error the first error is returned; other
// goroutines are still awaited so resources are not leaked.
func All[T any](ctx context.Context, fns ...func(context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(fns))
	errs := make([]error, len(fns))

	var wg sync.WaitGroup
	wg.Add(len(fns))

	for i, fn := range fns {
		i, fn := i, fn
		go func() {
			defer wg.Done()
			results[i], errs[i] = fn(ctx)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// AllSettled runs all fns concurrently and waits for every one to finish.
// Unlike All it never short-circuits: it always returns one Result per fn.
func AllSettled[T any](ctx context.Context, fns ...func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(fns))
	var wg sync.WaitGroup
	wg.Add(len(fns))

	for i, fn := range fns {
		i, fn := i, fn
		go func() {
			defer wg.Done()
			v, err := fn(ctx)
			results[i] = Result[T]{Value: v, Err: err}
		}()
	}
	wg.Wait()
	return results
}
