//go:build windows

package mpv

import "os/exec"

func setupProcess(cmd *exec.Cmd) {}
