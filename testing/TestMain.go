// Package testing switches the binaries into test mode. Test packages import
// it for its side effect:
//
//	import _ "github.com/civitrack/civitrack/testing"
package testing

import (
	"os"
	stdtesting "testing"
)

// Keep CIVITRACK_TEST_MODE in sync with app.TestModeEnv.
var testEnv = map[string]string{
	"CIVITRACK_TEST_MODE": "1",
	"GOTENBERG_URL":       "http://127.0.0.1:0",
	"CSRF_SECRET":         "test-csrf-secret",
}

func init() {
	for key, value := range testEnv {
		if key == "CIVITRACK_TEST_MODE" || os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs the suite with the test environment applied.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
