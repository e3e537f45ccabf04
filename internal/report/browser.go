package report

import (
	"os/exec"
	"runtime"
)

// OpenBrowser opens the given path or URL in the system default browser.
// Errors are silently ignored — this is best-effort.
func OpenBrowser(target string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", target)
	case "darwin":
		cmd = exec.Command("open", target)
	default: // linux + others
		cmd = exec.Command("xdg-open", target)
	}
	_ = cmd.Start()
}
