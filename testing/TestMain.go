// Package testing prepares the environment for packages that exercise the
// StaffHub wiring. Blank-import it from a _test.go file.
package testing

import (
	"os"
	stdtesting "testing"
)

// testEnv must match app.TestModeEnv; importing app here would create a cycle
// for app's own tests.
var testEnv = map[string]string{
	"STAFFHUB_TEST_MODE": "1",
	"SESSION_SECRET":     "test-session-secret",
	"CSRF_SECRET":        "test-csrf-secret",
}

func init() {
	for key, value := range testEnv {
		if _, set := os.LookupEnv(key); !set || key == "STAFFHUB_TEST_MODE" {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs m with the test environment in place.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
