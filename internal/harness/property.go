package harness

import (
	"context"
	"testing"

	"pgregory.net/rapid"
)

// Check runs a rapid property whose body returns an effect (or any value)
// per draw. Each draw's outcome is resolved through registry and awaited;
// a failed outcome fails the draw, letting rapid shrink the input.
func Check(t *testing.T, registry *Registry, body func(pt *rapid.T) any) {
	t.Helper()
	timeout := registry.Config().timeout()

	rapid.Check(t, func(pt *rapid.T) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		value, err := registry.Resolve(ctx, body(pt)).Wait(ctx)
		if err != nil {
			pt.Fatalf("property failed: %v", err)
		}
		if failure, ok := value.(error); ok {
			pt.Fatalf("property returned an error: %v", failure)
		}
	})
}
