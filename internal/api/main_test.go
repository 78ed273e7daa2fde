package api

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the api
// package, catching handlers that spawn work without cleaning up.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
