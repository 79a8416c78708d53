package main

import (
	"context"
	"sync"

	"github.com/fansqz/pdb-debugger/debugger"
)

// fakeDebugger 记录调用的调试器，返回预先设置的结果
type fakeDebugger struct {
	lock  sync.Mutex
	calls []string

	option      *debugger.StartOption
	breakpoints map[string][]int
	frames      []*debugger.StackFrame
	scopes      []*debugger.Scope
	err         error
	closed      bool
}

func newFakeDebugger() *fakeDebugger {
	return &fakeDebugger{breakpoints: make(map[string][]int)}
}

func (f *fakeDebugger) record(call string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeDebugger) Calls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDebugger) emit(event interface{}) {
	f.lock.Lock()
	callback := f.option.Callback
	f.lock.Unlock()
	callback(event)
}

func (f *fakeDebugger) Start(ctx context.Context, option *debugger.StartOption) error {
	f.lock.Lock()
	f.option = option
	f.lock.Unlock()
	return f.record("start " + option.Program)
}

func (f *fakeDebugger) Send(ctx context.Context, input string) error {
	return f.record("send " + input)
}

func (f *fakeDebugger) StepOver(ctx context.Context) error {
	return f.record("stepOver")
}

func (f *fakeDebugger) StepIn(ctx context.Context) error {
	return f.record("stepIn")
}

func (f *fakeDebugger) StepOut(ctx context.Context) error {
	return f.record("stepOut")
}

func (f *fakeDebugger) Continue(ctx context.Context) error {
	return f.record("continue")
}

func (f *fakeDebugger) SelectFrame(ctx context.Context, index int) error {
	return f.record("selectFrame")
}

func (f *fakeDebugger) LoadFile(ctx context.Context, file string) error {
	return f.record("loadFile " + file)
}

func (f *fakeDebugger) ToggleBreakpoint(ctx context.Context, file string, line int) (bool, error) {
	if err := f.record("toggle"); err != nil {
		return false, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	for i, l := range f.breakpoints[file] {
		if l == line {
			f.breakpoints[file] = append(f.breakpoints[file][:i], f.breakpoints[file][i+1:]...)
			return false, nil
		}
	}
	f.breakpoints[file] = append(f.breakpoints[file], line)
	return true, nil
}

// SetBreakpoints 接受所有非负行号
func (f *fakeDebugger) SetBreakpoints(ctx context.Context, file string, lines []int) ([]*debugger.Breakpoint, error) {
	if err := f.record("setBreakpoints"); err != nil {
		return nil, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	var accepted []*debugger.Breakpoint
	f.breakpoints[file] = nil
	for _, line := range lines {
		if line >= 0 {
			f.breakpoints[file] = append(f.breakpoints[file], line)
			accepted = append(accepted, debugger.NewBreakpoint(file, line))
		}
	}
	return accepted, nil
}

func (f *fakeDebugger) ClearBreakpoints(ctx context.Context) error {
	return f.record("clear")
}

func (f *fakeDebugger) GetBreakpoints(ctx context.Context, file string) ([]*debugger.Breakpoint, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	var breakpoints []*debugger.Breakpoint
	for _, line := range f.breakpoints[file] {
		breakpoints = append(breakpoints, debugger.NewBreakpoint(file, line))
	}
	return breakpoints, nil
}

func (f *fakeDebugger) SetVariable(ctx context.Context, expression string, value string) error {
	return f.record("setVariable " + expression + "=" + value)
}

func (f *fakeDebugger) GetStackTrace(ctx context.Context) ([]*debugger.StackFrame, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.frames, nil
}

func (f *fakeDebugger) GetScopes(ctx context.Context) ([]*debugger.Scope, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.scopes, nil
}

func (f *fakeDebugger) Terminate(ctx context.Context) error {
	return f.record("terminate")
}

func (f *fakeDebugger) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
	return nil
}

func strPtr(s string) *string {
	return &s
}
