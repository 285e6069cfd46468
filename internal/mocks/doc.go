// Package mocks provides shared mock implementations for testing.
//
// Mocks follow one pattern: a function field per interface method for custom
// behaviour, default return values used when the function is nil, and
// per-method call tracking guarded by a mutex so handlers running items
// concurrently can use them.
//
//	client := mocks.NewMockClient(
//	    mocks.WithResponseFn(func(ctx context.Context, prompt string) (string, error) {
//	        return `["What is Go?"]`, nil
//	    }),
//	)
//	factory := mocks.NewMockFactory(client)
package mocks
