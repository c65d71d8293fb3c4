//go:build unix

package render

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the worker in its own process group and makes
// context cancellation kill the whole group, so browser children never
// outlive the worker.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
