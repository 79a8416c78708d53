package constants

type DebugEventType string

const (
	BreakpointEvent   DebugEventType = "breakpoint"
	OutputEvent       DebugEventType = "output"
	StoppedEvent      DebugEventType = "stopped"
	ContinuedEvent    DebugEventType = "continued"
	StackEvent        DebugEventType = "stack"
	VariablesEvent    DebugEventType = "variables"
	FileSwitchedEvent DebugEventType = "fileSwitched"
	WarningEvent      DebugEventType = "warning"
	ExitedEvent       DebugEventType = "exited"
	TerminatedEvent   DebugEventType = "terminated"
	LaunchEvent       DebugEventType = "launch"
)

// BreakpointReasonType 断点改变类型
type BreakpointReasonType string

const (
	ChangeType  BreakpointReasonType = "change"
	NewType     BreakpointReasonType = "new"
	RemovedType BreakpointReasonType = "removed"
)

// StoppedReasonType 程序停止类型
type StoppedReasonType string

const (
	// EntryStopped 程序启动后停在第一行
	EntryStopped      StoppedReasonType = "entry"
	StepStopped       StoppedReasonType = "step"
	BreakpointStopped StoppedReasonType = "breakpoint"
	// FrameStopped 切换栈帧后重新定位
	FrameStopped StoppedReasonType = "frame"
)

// StepType 单步调试类型
type StepType string

const (
	StepIn   StepType = "stepIn"
	StepOut  StepType = "stepOut"
	StepOver StepType = "stepOver"
	Continue StepType = "continue"
)

// ScopeName 作用域名称
type ScopeName string

// Local: 当前栈帧中的局部变量和参数。
// Global: 当前模块的全局变量。
const (
	ScopeLocal  ScopeName = "locals"
	ScopeGlobal ScopeName = "globals"
)

// OutputCategory 输出类别
type OutputCategory string

const (
	// ConsoleOutput 调试器自身输出及未被识别的程序输出
	ConsoleOutput OutputCategory = "console"
	StdoutOutput  OutputCategory = "stdout"
	StderrOutput  OutputCategory = "stderr"
)
