//go:build unix

package inspector

import (
	"os/exec"
	"syscall"
)

// killGroupOnCancel starts the shell in its own process group and kills the
// whole group when the context ends. `sh -c "a | b"` forks children that a
// plain kill of sh would leave running.
func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
