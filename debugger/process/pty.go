package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"

	e "github.com/fansqz/pdb-debugger/error"
)

// Terminal 运行在虚拟终端中的子进程，输入输出都经过同一个pty
type Terminal struct {
	cmd *exec.Cmd
	pty *os.File
}

// StartPTY launches the child attached to a new pseudo-terminal.
func StartPTY(ctx context.Context, spec Spec) (*Terminal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", e.ErrSpawnFailure, spec.Command, err)
	}
	logrus.Infof("[Terminal] started %s, pid = %d", spec.Command, cmd.Process.Pid)
	return &Terminal{cmd: cmd, pty: f}, nil
}

// File is the master side of the terminal, readable and writable.
func (t *Terminal) File() *os.File {
	return t.pty
}

// InheritSize copies the window size of from onto the terminal.
func (t *Terminal) InheritSize(from *os.File) error {
	return pty.InheritSize(from, t.pty)
}

// Kill terminates the child.
func (t *Terminal) Kill() error {
	err := t.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Wait blocks until the child exits and closes the terminal.
func (t *Terminal) Wait() ExitStatus {
	status := exitStatus(t.cmd.Wait())
	_ = t.pty.Close()
	return status
}
