//go:build windows

package taskrunner

import "os/exec"

func configureProcess(cmd *exec.Cmd) {}

// terminateProcess forcibly terminates the handler process.
func terminateProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
