package export

import (
	"os"
	"testing"

	"github.com/vanderheijden86/depcity/pkg/debug"
)

func TestMain(m *testing.M) {
	// Keep debug output out of test logs even when the developer
	// has DEPCITY_DEBUG set.
	debug.SetEnabled(false)

	os.Exit(m.Run())
}
