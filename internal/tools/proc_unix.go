//go:build unix

package tools

import (
	"os/exec"
	"syscall"
)

// setProcessGroup runs cmd in its own process group and makes
// cancellation kill the whole group, so grandchildren holding the
// output pipes die with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
