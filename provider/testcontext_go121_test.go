//go:build !go1.24

package provider_test

import (
	"context"
	"testing"
)

// testContext mirrors (*testing.T).Context for pre-1.24 toolchains: it
// returns a context canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
