package pdb_debugger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fansqz/pdb-debugger/config"
	"github.com/fansqz/pdb-debugger/constants"
	. "github.com/fansqz/pdb-debugger/debugger"
	"github.com/fansqz/pdb-debugger/debugger/process"
	"github.com/fansqz/pdb-debugger/debugger/source"
	. "github.com/fansqz/pdb-debugger/debugger/utils"
	e "github.com/fansqz/pdb-debugger/error"
	. "github.com/fansqz/pdb-debugger/utils"
	"github.com/fansqz/pdb-debugger/utils/gosync"
)

// childProcess 调试器使用的子进程能力，测试中可以替换
type childProcess interface {
	Write(data []byte)
	Kill() error
	WaitExit(timeout time.Duration) (process.ExitStatus, error)
	Output() <-chan process.Chunk
	Status() process.ExitStatus
}

type spawnFunc func(ctx context.Context, spec process.Spec) (childProcess, error)

func spawnProcess(ctx context.Context, spec process.Spec) (childProcess, error) {
	p, err := process.Start(ctx, spec)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PdbDebugger python调试器
// 所有的状态只在loop协程中读写，公开方法通过do将操作投递到loop中执行，
// 子进程的输出也在loop中按到达顺序处理，因此不需要锁
type PdbDebugger struct {
	cfg      *config.Config
	protocol *config.Protocol

	// 事件产生时，触发该回调
	callback NotificationCallback

	// statusManager 调试的状态管理，可在任意协程中读取
	statusManager *StatusManager

	ops      chan func()
	closed   chan struct{}
	loopDone chan struct{}
	once     sync.Once

	spawn     spawnFunc
	helperDir string
	sessionID string

	proc        childProcess
	output      <-chan process.Chunk
	dechunker   *Dechunker
	stderrLines *Dechunker
	parser      *Parser
	builder     *VariableTreeBuilder
	registry    *BreakpointRegistry

	frames   []*StackFrame
	selected int
	locals   *Scope
	globals  *Scope
	active   *ActiveLine
	// frameSwitching 已发送u/d命令，下一次ActiveLine是切换栈帧导致的
	frameSwitching bool
}

func NewPdbDebugger(cfg *config.Config) (*PdbDebugger, error) {
	protocol, err := config.NewProtocol(cfg)
	if err != nil {
		return nil, err
	}
	d := &PdbDebugger{
		cfg:           cfg,
		protocol:      protocol,
		statusManager: NewStatusManager(),
		ops:           make(chan func()),
		closed:        make(chan struct{}),
		loopDone:      make(chan struct{}),
		spawn:         spawnProcess,
		dechunker:     NewDechunker(protocol.Prompt, protocol.Encoding),
		stderrLines:   NewDechunker(protocol.EOL, protocol.Encoding),
		parser:        NewParser(protocol),
		builder:       NewVariableTreeBuilder(protocol),
		registry:      NewBreakpointRegistry(protocol, source.NewReader(nil)),
	}
	gosync.Go(context.Background(), func(ctx context.Context) {
		d.loop()
	})
	return d, nil
}

func (d *PdbDebugger) Start(ctx context.Context, option *StartOption) error {
	logrus.Infof("[PdbDebugger] Start")
	if option == nil || option.Program == "" {
		return fmt.Errorf("%w: no program", e.ErrSpawnFailure)
	}
	var err error
	if doErr := d.do(ctx, func() { err = d.start(ctx, option) }); doErr != nil {
		return doErr
	}
	return err
}

// start 启动python调试进程，并预先设置所有断点
func (d *PdbDebugger) start(ctx context.Context, option *StartOption) error {
	if d.proc != nil {
		return e.ErrSessionAlreadyActive
	}
	d.callback = option.Callback
	program := NormalizePath(option.Program)

	if d.helperDir == "" {
		dir, err := installHelper(d.cfg.Python.Module)
		if err != nil {
			d.emit(NewLaunchEvent(false, err.Error()))
			return fmt.Errorf("%w: install helper: %v", e.ErrSpawnFailure, err)
		}
		d.helperDir = dir
	}
	cwd := option.Cwd
	if cwd == "" {
		cwd = filepath.Dir(program)
	}
	spec := process.Spec{
		Command: d.cfg.Python.Interpreter,
		Args:    append([]string{"-u", "-m", d.cfg.Python.Module, program}, option.Args...),
		Dir:     cwd,
		Env:     append([]string{pythonPath(d.helperDir)}, option.Env...),
	}
	proc, err := d.spawn(ctx, spec)
	if err != nil {
		logrus.Errorf("[PdbDebugger] start fail, err = %v", err)
		d.emit(NewLaunchEvent(false, err.Error()))
		return err
	}

	d.sessionID = GetUUID()
	d.proc = proc
	d.output = proc.Output()
	d.dechunker.Reset()
	d.stderrLines.Reset()
	d.statusManager.Set(Starting)
	logrus.WithField("session", d.sessionID).Infof("[PdbDebugger] debugging %s", program)

	// 被调试的脚本成为当前文件，断点先发送当前文件的，再发送其他文件的
	if d.registry.Current() != program {
		d.registry.SwitchFile(d.registry.Current(), program)
	}
	d.registry.Attach(commandWriter{d})
	for _, command := range d.registry.PreloadCommands() {
		d.write(command)
	}
	d.refresh(true)
	d.emit(NewLaunchEvent(true, "debugger started"))
	return nil
}

func (d *PdbDebugger) Send(ctx context.Context, input string) error {
	logrus.Infof("[PdbDebugger] Send")
	var err error
	if doErr := d.do(ctx, func() {
		if d.proc == nil {
			err = e.ErrDebuggerIsClosed
			return
		}
		d.write(strings.TrimSuffix(input, "\n"))
	}); doErr != nil {
		return doErr
	}
	return err
}

func (d *PdbDebugger) StepOver(ctx context.Context) error {
	logrus.Infof("[PdbDebugger] StepOver")
	return d.step(ctx, constants.StepOver)
}

func (d *PdbDebugger) StepIn(ctx context.Context) error {
	logrus.Infof("[PdbDebugger] StepIn")
	return d.step(ctx, constants.StepIn)
}

func (d *PdbDebugger) StepOut(ctx context.Context) error {
	logrus.Infof("[PdbDebugger] StepOut")
	return d.step(ctx, constants.StepOut)
}

func (d *PdbDebugger) Continue(ctx context.Context) error {
	logrus.Infof("[PdbDebugger] Continue")
	return d.step(ctx, constants.Continue)
}

// step 单步命令只能在程序暂停时发送，发送后等待下一次暂停
func (d *PdbDebugger) step(ctx context.Context, step constants.StepType) error {
	var err error
	if doErr := d.do(ctx, func() {
		if err = d.checkStopped(); err != nil {
			return
		}
		d.write(constants.StepCommand(step))
		d.statusManager.Set(AwaitingStop)
		d.emit(NewContinuedEvent(step))
		d.refresh(true)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (d *PdbDebugger) SelectFrame(ctx context.Context, index int) error {
	logrus.Infof("[PdbDebugger] SelectFrame %d", index)
	var err error
	if doErr := d.do(ctx, func() {
		if err = d.checkStopped(); err != nil {
			return
		}
		if index < 0 || index >= len(d.frames) {
			err = fmt.Errorf("%w: %d", e.ErrFrameOutOfRange, index)
			return
		}
		delta := index - d.selected
		if delta == 0 {
			return
		}
		d.selected = index
		if delta < 0 {
			d.write(constants.CmdUp + " " + strconv.Itoa(-delta))
		} else {
			d.write(constants.CmdDown + " " + strconv.Itoa(delta))
		}
		d.frameSwitching = true
		d.refresh(false)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (d *PdbDebugger) LoadFile(ctx context.Context, file string) error {
	logrus.Infof("[PdbDebugger] LoadFile %s", file)
	return d.do(ctx, func() {
		d.registry.SwitchFile(d.registry.Current(), file)
	})
}

func (d *PdbDebugger) ToggleBreakpoint(ctx context.Context, file string, line int) (bool, error) {
	logrus.Infof("[PdbDebugger] ToggleBreakpoint %s:%d", file, line)
	var (
		reason constants.BreakpointReasonType
		err    error
	)
	if doErr := d.do(ctx, func() {
		if reason, err = d.registry.Toggle(file, line); err != nil {
			return
		}
		d.emit(NewBreakpointEvent(reason, []*Breakpoint{NewBreakpoint(NormalizePath(file), line)}))
	}); doErr != nil {
		return false, doErr
	}
	return reason == constants.NewType, err
}

func (d *PdbDebugger) SetBreakpoints(ctx context.Context, file string, lines []int) ([]*Breakpoint, error) {
	logrus.Infof("[PdbDebugger] SetBreakpoints %s %v", file, lines)
	var accepted []*Breakpoint
	if err := d.do(ctx, func() {
		accepted = d.registry.Set(file, lines)
		d.emit(NewBreakpointEvent(constants.ChangeType, accepted))
	}); err != nil {
		return nil, err
	}
	return accepted, nil
}

func (d *PdbDebugger) ClearBreakpoints(ctx context.Context) error {
	logrus.Infof("[PdbDebugger] ClearBreakpoints")
	return d.do(ctx, func() {
		removed := d.registry.Snapshot(d.registry.Current())
		d.registry.ClearAll()
		d.emit(NewBreakpointEvent(constants.RemovedType, removed))
	})
}

func (d *PdbDebugger) GetBreakpoints(ctx context.Context, file string) ([]*Breakpoint, error) {
	var breakpoints []*Breakpoint
	if err := d.do(ctx, func() {
		breakpoints = d.registry.Snapshot(file)
	}); err != nil {
		return nil, err
	}
	return breakpoints, nil
}

// SetVariable 执行赋值语句后重新获取变量
func (d *PdbDebugger) SetVariable(ctx context.Context, expression string, value string) error {
	logrus.Infof("[PdbDebugger] SetVariable %s", expression)
	var err error
	if doErr := d.do(ctx, func() {
		if err = d.checkStopped(); err != nil {
			return
		}
		d.write(constants.CmdExecStatement + expression + "=" + value)
		d.refresh(false)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (d *PdbDebugger) GetStackTrace(ctx context.Context) ([]*StackFrame, error) {
	var frames []*StackFrame
	if err := d.do(ctx, func() {
		frames = make([]*StackFrame, len(d.frames))
		for i, f := range d.frames {
			frame := *f
			frames[i] = &frame
		}
	}); err != nil {
		return nil, err
	}
	return frames, nil
}

// GetScopes 返回局部变量和全局变量两个作用域，尚未收到dump时作用域为空
func (d *PdbDebugger) GetScopes(ctx context.Context) ([]*Scope, error) {
	var scopes []*Scope
	if err := d.do(ctx, func() {
		scopes = []*Scope{
			orEmpty(d.locals, constants.ScopeLocal),
			orEmpty(d.globals, constants.ScopeGlobal),
		}
	}); err != nil {
		return nil, err
	}
	return scopes, nil
}

// GetActiveLine 返回程序当前停止的位置，ok为false表示没有停止
func (d *PdbDebugger) GetActiveLine(ctx context.Context) (file string, line int, ok bool, err error) {
	err = d.do(ctx, func() {
		if d.active != nil {
			file, line, ok = d.active.File, d.active.Line, true
		}
	})
	return
}

// State 当前会话状态
func (d *PdbDebugger) State() string {
	return d.statusManager.Get()
}

// Terminate 杀死子进程并等待退出，超时只产生警告
func (d *PdbDebugger) Terminate(ctx context.Context) error {
	logrus.Infof("[PdbDebugger] Terminate")
	var proc childProcess
	if err := d.do(ctx, func() { proc = d.proc }); err != nil {
		return err
	}
	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil {
		logrus.Warnf("[PdbDebugger] kill fail, err = %v", err)
	}
	status, err := proc.WaitExit(d.cfg.Session.KillTimeout)
	warning := ""
	if err != nil {
		logrus.Warnf("[PdbDebugger] %v", err)
		warning = err.Error()
	}
	return d.do(ctx, func() {
		if d.proc == proc {
			d.finish(status, warning)
		}
	})
}

// Close 结束调试会话并释放调试器，之后的调用都返回ErrDebuggerIsClosed
func (d *PdbDebugger) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Session.KillTimeout+time.Second)
	defer cancel()
	err := d.Terminate(ctx)
	if errors.Is(err, e.ErrDebuggerIsClosed) {
		return nil
	}
	d.once.Do(func() { close(d.closed) })
	<-d.loopDone
	if d.helperDir != "" {
		_ = os.RemoveAll(d.helperDir)
	}
	return err
}

func (d *PdbDebugger) loop() {
	defer close(d.loopDone)
	for {
		select {
		case op := <-d.ops:
			d.run(op)
		case chunk, ok := <-d.output:
			if !ok {
				d.output = nil
				d.run(d.onExit)
				continue
			}
			d.run(func() { d.onChunk(chunk) })
		case <-d.closed:
			return
		}
	}
}

func (d *PdbDebugger) run(op func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[PdbDebugger] panic: %v", r)
		}
	}()
	op()
}

// do 在loop协程中执行op并等待其完成
func (d *PdbDebugger) do(ctx context.Context, op func()) error {
	done := make(chan struct{})
	select {
	case d.ops <- func() { defer close(done); op() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.closed:
		return e.ErrDebuggerIsClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.closed:
		return e.ErrDebuggerIsClosed
	}
}

func (d *PdbDebugger) onChunk(chunk process.Chunk) {
	if chunk.Stream == process.Stderr {
		lines := FilterTraceback(d.stderrLines.Feed(chunk.Data), d.protocol.IsInternal)
		if len(lines) > 0 {
			d.emit(NewOutputEvent(constants.StderrOutput, strings.Join(lines, "\n")+"\n"))
		}
		return
	}
	for _, text := range d.dechunker.Feed(chunk.Data) {
		for _, event := range d.parser.Parse(text) {
			d.apply(event)
		}
	}
}

func (d *PdbDebugger) apply(event ProtocolEvent) {
	switch ev := event.(type) {
	case ActiveLine:
		reason := d.stopReason(ev)
		d.frameSwitching = false
		if file := NormalizePath(ev.File); file != d.registry.Current() {
			from := d.registry.Current()
			d.registry.SwitchFile(from, file)
			d.emit(NewFileSwitchedEvent(from, file))
		}
		d.active = &ev
		d.statusManager.Set(Stopped)
		d.emit(NewStoppedEvent(reason, ev.File, ev.Line))
	case EnvUpdate:
		d.frameSwitching = false
		d.locals = d.builder.BuildScope(constants.ScopeLocal, ev.Locals)
		d.globals = d.builder.BuildScope(constants.ScopeGlobal, ev.Globals)
		d.emit(NewVariablesEvent(d.locals, d.globals))
	case StackUpdate:
		d.frames = ev.Frames
		d.selected = ev.Current
		d.emit(NewStackEvent(ev.Frames, ev.Current))
	case ConsoleLine:
		d.emit(NewOutputEvent(constants.ConsoleOutput, ev.Text))
	}
}

func (d *PdbDebugger) stopReason(ev ActiveLine) constants.StoppedReasonType {
	switch {
	case d.frameSwitching:
		return constants.FrameStopped
	case d.statusManager.Is(Starting):
		return constants.EntryStopped
	case d.registry.Has(ev.File, ev.Line-1):
		return constants.BreakpointStopped
	default:
		return constants.StepStopped
	}
}

func (d *PdbDebugger) onExit() {
	if d.proc == nil {
		return
	}
	d.finish(d.proc.Status(), "")
}

// finish 清理会话状态，可以重复调用
func (d *PdbDebugger) finish(status process.ExitStatus, warning string) {
	if d.proc == nil {
		return
	}
	logrus.WithField("session", d.sessionID).Infof("[PdbDebugger] finish, code = %d", status.Code)
	if rest := d.dechunker.Flush(); rest != "" {
		d.emit(NewOutputEvent(constants.ConsoleOutput, rest))
	}
	if rest := d.stderrLines.Flush(); rest != "" {
		d.emit(NewOutputEvent(constants.StderrOutput, rest))
	}
	d.proc = nil
	d.output = nil
	d.frames = nil
	d.selected = 0
	d.locals = nil
	d.globals = nil
	d.active = nil
	d.frameSwitching = false
	d.registry.Detach()
	d.statusManager.Set(Terminated)

	if warning != "" {
		d.emit(NewWarningEvent(warning))
	}
	message := "Execution finished."
	if status.Signaled {
		message = "Execution killed."
	}
	d.emit(NewOutputEvent(constants.ConsoleOutput, message+"\n"))
	d.emit(NewExitedEvent(status.Code, message))
	d.emit(NewTerminatedEvent())
}

func (d *PdbDebugger) checkStopped() error {
	if d.proc == nil {
		return e.ErrDebuggerIsClosed
	}
	if !d.statusManager.Is(Stopped) {
		return e.ErrProgramIsRunningOptionFail
	}
	return nil
}

// refresh 请求变量，withStack时同时请求调用栈，结果随后续的响应单元异步到达
func (d *PdbDebugger) refresh(withStack bool) {
	d.write(constants.CmdDump)
	if withStack {
		d.write(constants.CmdWhere)
	}
}

func (d *PdbDebugger) write(command string) {
	if d.proc == nil {
		return
	}
	logrus.Debugf("[PdbDebugger] send %q", command)
	data, err := d.protocol.Encoding.NewEncoder().Bytes([]byte(command + "\n"))
	if err != nil {
		data = []byte(command + "\n")
	}
	d.proc.Write(data)
}

func (d *PdbDebugger) emit(event interface{}) {
	if d.callback != nil {
		d.callback(event)
	}
}

// commandWriter 断点命令直接写入子进程，不等待响应
type commandWriter struct {
	d *PdbDebugger
}

func (w commandWriter) Send(command string) {
	w.d.write(command)
}

func orEmpty(scope *Scope, name constants.ScopeName) *Scope {
	if scope == nil {
		return &Scope{Name: name, Variables: []*Variable{}}
	}
	return scope
}
