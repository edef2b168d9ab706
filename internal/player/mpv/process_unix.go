//go:build !windows

package mpv

import (
	"os/exec"
	"syscall"
)

// setupProcess detaches mpv from the terminal's process group so Ctrl+C in
// the TUI does not reach it.
func setupProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
