//go:build !windows

package infrastructure

import (
	"os/exec"
	"syscall"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// configureProcessGroup puts the engine in a new process group whose id is
// the engine's pid, so helpers it forks can be signalled together.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree sends SIGKILL to the engine's whole process group. A group
// that no longer exists is not an error.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return errors.Wrapf(err, "kill process group %d", cmd.Process.Pid)
}
