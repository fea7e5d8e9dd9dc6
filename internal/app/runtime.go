package app

import (
	"os"
	"sync"
)

// TestModeEnv disables runtime startup in the binaries when set to "1".
const TestModeEnv = "CIVITRACK_TEST_MODE"

var inTestMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether binaries should skip connecting to Postgres,
// Redis and Gotenberg. The environment is read once.
func InTestMode() bool {
	return inTestMode()
}
