//go:build e2e

package e2e

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
)

func TestMain(m *testing.M) {
	code := m.Run()

	// Catches browsers left behind by panics, where no deferred Close ran.
	cleanupOrphanedBrowsers()

	os.Exit(code)
}

func cleanupOrphanedBrowsers() {
	switch runtime.GOOS {
	case "darwin", "linux":
		// pkill exits non-zero when nothing matched
		_ = exec.Command("pkill", "-f", "chromium|chrome").Run()
	case "windows":
		_ = exec.Command("taskkill", "/F", "/IM", "chrome.exe").Run()
		_ = exec.Command("taskkill", "/F", "/IM", "chromium.exe").Run()
	}
}
