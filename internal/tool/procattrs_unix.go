//go:build !windows

package tool

import (
	"os/exec"
	"syscall"
)

// setBackgroundProcAttrs puts a background command in its own process
// group so the task manager can signal the whole tree on kill.
func setBackgroundProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
