package app

import (
	"os"
	"sync"
)

// TestModeEnv is set to "1" by the staffhub/testing package. Processes then
// skip network side effects such as listeners and the global rate limiter.
const TestModeEnv = "STAFFHUB_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the process runs under tests. The environment is
// read once.
func InTestMode() bool {
	return testMode()
}
