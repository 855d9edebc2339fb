//go:build unix

package daemon

import (
	"os/exec"
	"syscall"
)

// setNewProcessGroup makes cmd the leader of a fresh process group so that
// a single negative-pid signal reaches every descendant it forks
// (signal-cli execs a JVM, which must not survive the gateway).
func setNewProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

func killGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
