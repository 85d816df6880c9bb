//go:build unix

package tools

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the child in its own process group so a
// timeout kills helpers it forked (mtr-packet, for example) along with it.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
