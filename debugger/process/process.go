// Package process supervises the debugger child process: spawning, stdin
// writes, asynchronous delivery of stdout/stderr and bounded termination.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	e "github.com/fansqz/pdb-debugger/error"
	"github.com/fansqz/pdb-debugger/utils/gosync"
)

const readBufferSize = 4096

// Spec describes the child to launch.
type Spec struct {
	Command string
	Args    []string
	// Dir is the working directory; empty inherits ours.
	Dir string
	// Env is appended to the current environment.
	Env []string
}

// Stream identifies the child output stream a chunk came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Chunk is one read from a child stream, in arrival order.
type Chunk struct {
	Stream Stream
	Data   []byte
}

// ExitStatus of a finished child. Code is -1 when unknown.
type ExitStatus struct {
	Code     int
	Signaled bool
}

// Process 一个被监管的子进程
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	output    chan Chunk
	done      chan struct{}
	reclaimed chan struct{}
	readers   conc.WaitGroup

	writeLock   sync.Mutex
	reclaimOnce sync.Once

	statusLock sync.RWMutex
	status     ExitStatus
}

// Start launches the child described by spec. Output starts flowing on
// Output() immediately.
func Start(ctx context.Context, spec Spec) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	p := &Process{
		cmd:       cmd,
		output:    make(chan Chunk, 64),
		done:      make(chan struct{}),
		reclaimed: make(chan struct{}),
		status:    ExitStatus{Code: -1},
	}
	var err error
	if p.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrSpawnFailure, err)
	}
	if p.stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrSpawnFailure, err)
	}
	if p.stderr, err = cmd.StderrPipe(); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrSpawnFailure, err)
	}
	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", e.ErrSpawnFailure, spec.Command, err)
	}
	logrus.Infof("[Process] started %s, pid = %d", spec.Command, cmd.Process.Pid)

	p.readers.Go(func() { p.pump(Stdout, p.stdout) })
	p.readers.Go(func() { p.pump(Stderr, p.stderr) })
	gosync.Go(context.Background(), func(ctx context.Context) {
		p.waitLoop()
	})
	return p, nil
}

// Output delivers child output. It is closed after both streams drained and
// the exit status is known.
func (p *Process) Output() <-chan Chunk {
	return p.output
}

// Done is closed when the child has exited and its output was delivered.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Status returns the exit status, Code -1 while running.
func (p *Process) Status() ExitStatus {
	p.statusLock.RLock()
	defer p.statusLock.RUnlock()
	return p.status
}

// Pid of the child.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Write sends data to the child's stdin without waiting for a response.
// Failures are logged only.
func (p *Process) Write(data []byte) {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	if _, err := p.stdin.Write(data); err != nil {
		logrus.Warnf("[Process] write fail, err = %v", err)
	}
}

// Kill terminates the child immediately. Killing an exited child is not an error.
func (p *Process) Kill() error {
	err := p.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// WaitExit waits up to timeout for the child to exit. On timeout the pipes
// are force-closed and ErrKillTimeout is returned; callers treat it as a warning.
func (p *Process) WaitExit(timeout time.Duration) (ExitStatus, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.Status(), nil
	case <-timer.C:
		p.reclaim()
		return ExitStatus{Code: -1}, e.ErrKillTimeout
	}
}

func (p *Process) reclaim() {
	p.reclaimOnce.Do(func() {
		logrus.Warnf("[Process] force reclaim pid = %d", p.cmd.Process.Pid)
		close(p.reclaimed)
		_ = p.cmd.Process.Kill()
		_ = p.stdin.Close()
		_ = p.stdout.Close()
		_ = p.stderr.Close()
	})
}

func (p *Process) pump(stream Stream, r io.Reader) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case p.output <- Chunk{Stream: stream, Data: data}:
			case <-p.reclaimed:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logrus.Debugf("[Process] %s read stopped, err = %v", stream, err)
			}
			return
		}
	}
}

// waitLoop reaps the child after both readers finished, as exec requires.
func (p *Process) waitLoop() {
	if r := p.readers.WaitAndRecover(); r != nil {
		logrus.Errorf("[Process] reader panic: %v", r.Value)
	}
	err := p.cmd.Wait()
	status := exitStatus(err)

	p.statusLock.Lock()
	p.status = status
	p.statusLock.Unlock()

	logrus.Infof("[Process] pid = %d exited, code = %d, signaled = %v", p.cmd.Process.Pid, status.Code, status.Signaled)
	close(p.output)
	close(p.done)
}

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{Code: 0}
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitStatus{Code: -1}
	}
	status := ExitStatus{Code: exitErr.ExitCode()}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signaled = true
	}
	return status
}
