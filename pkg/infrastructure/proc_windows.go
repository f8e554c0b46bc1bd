//go:build windows

package infrastructure

import (
	"os/exec"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}

// killProcessTree walks the engine's descendants and kills them leaves first.
// Windows has no process group signal that reaches grandchildren.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	root, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		// Already gone.
		return nil
	}
	return killDescendants(root)
}

func killDescendants(p *process.Process) error {
	children, _ := p.Children()
	var errs error
	for _, c := range children {
		if err := killDescendants(c); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if err := p.Kill(); err != nil {
		if ok, _ := process.PidExists(p.Pid); ok {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "kill pid %d", p.Pid))
		}
	}
	return errs
}
