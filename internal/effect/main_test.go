package effect

import (
	"testing"

	"go.uber.org/goleak"
)

// Every test must leave no fiber or computation goroutine behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
