package ledger

import (
	"context"
	"sync"
	"testing"
)

var testCtxs sync.Map

// testCtx stands in for t.Context (Go 1.24+): one context per test,
// canceled when the test finishes.
func testCtx(t testing.TB) context.Context {
	if ctx, ok := testCtxs.Load(t); ok {
		return ctx.(context.Context)
	}
	ctx, cancel := context.WithCancel(context.Background())
	testCtxs.Store(t, ctx)
	t.Cleanup(func() {
		cancel()
		testCtxs.Delete(t)
	})
	return ctx
}
