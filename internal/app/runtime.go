package app

import (
	"os"
	"sync"
)

var inTestMode = sync.OnceValue(func() bool {
	return os.Getenv("SALEJUCK_TEST_MODE") == "1"
})

// InTestMode reports whether the process should skip runtime side effects;
// the entrypoints check it before opening stores or binding ports.
func InTestMode() bool {
	return inTestMode()
}
