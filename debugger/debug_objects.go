package debugger

import (
	"github.com/fansqz/pdb-debugger/constants"
)

// StartOption 启动调试的参数
type StartOption struct {
	// Program 被调试的脚本
	Program string
	Args    []string
	// Cwd 为空时使用脚本所在目录
	Cwd string
	// Env 追加到当前进程环境变量之后
	Env []string
	// Callback 事件回调
	Callback NotificationCallback
}

// Breakpoint 表示断点
type Breakpoint struct {
	File string `json:"file"` // 文件绝对路径
	Line int    `json:"line"` // 行号，从0开始
}

func NewBreakpoint(file string, line int) *Breakpoint {
	return &Breakpoint{file, line}
}

// StackFrame 栈帧
type StackFrame struct {
	ID   string `json:"id"`   // 栈帧id，即下标
	Name string `json:"name"` // 函数名称
	Path string `json:"path"` // 文件路径
	Line int    `json:"line"` // 行号，从1开始
}

// Scope 作用域
type Scope struct {
	Name constants.ScopeName `json:"name"`
	// Label 调试进程给出的作用域标签
	Label     string      `json:"label"`
	Variables []*Variable `json:"variables"`
}

// VariableKind 变量的结构类型
type VariableKind int

const (
	ScalarKind VariableKind = iota
	MappingKind
	SequenceKind
	FieldObjectKind
	// RecursionKind 循环引用被截断的节点
	RecursionKind
)

func (k VariableKind) String() string {
	switch k {
	case MappingKind:
		return "mapping"
	case SequenceKind:
		return "sequence"
	case FieldObjectKind:
		return "object"
	case RecursionKind:
		return "recursion"
	default:
		return "scalar"
	}
}

// Variable 变量
type Variable struct {
	Name  string       `json:"name"`
	Type  string       `json:"type"`
	Value *string      `json:"value"`
	Kind  VariableKind `json:"kind"`
	// Expression 在当前栈帧中可以赋值的表达式
	Expression string      `json:"expression"`
	Children   []*Variable `json:"children,omitempty"`
}

// BreakpointEvent 断点事件
// 该event指示有关断点的某些信息已更改。
type BreakpointEvent struct {
	Reason      constants.BreakpointReasonType
	Breakpoints []*Breakpoint
}

func NewBreakpointEvent(reason constants.BreakpointReasonType, breakpoints []*Breakpoint) *BreakpointEvent {
	return &BreakpointEvent{
		Reason:      reason,
		Breakpoints: breakpoints,
	}
}

// OutputEvent
// 调试进程输出
type OutputEvent struct {
	Category constants.OutputCategory
	Output   string // 输出内容
}

func NewOutputEvent(category constants.OutputCategory, output string) *OutputEvent {
	return &OutputEvent{
		Category: category,
		Output:   output,
	}
}

// StoppedEvent
// 该event表明，由于某些原因，被调试进程的执行已经停止。
// 这可能是由先前设置的断点、完成的步进请求、切换栈帧等引起的。
type StoppedEvent struct {
	Reason constants.StoppedReasonType // 停止执行的原因
	File   string                      // 当前停止在哪个文件
	Line   int                         // 停止在某行，从1开始
}

func NewStoppedEvent(reason constants.StoppedReasonType, file string, line int) *StoppedEvent {
	return &StoppedEvent{
		Reason: reason,
		File:   file,
		Line:   line,
	}
}

// ContinuedEvent
// 该event表明debug的执行已经继续。
type ContinuedEvent struct {
	Step constants.StepType
}

func NewContinuedEvent(step constants.StepType) *ContinuedEvent {
	return &ContinuedEvent{Step: step}
}

// StackEvent 调用栈更新
type StackEvent struct {
	Frames []*StackFrame
	// Current 当前选中的栈帧下标
	Current int
}

func NewStackEvent(frames []*StackFrame, current int) *StackEvent {
	return &StackEvent{
		Frames:  frames,
		Current: current,
	}
}

// VariablesEvent 变量更新
type VariablesEvent struct {
	Locals  *Scope
	Globals *Scope
}

func NewVariablesEvent(locals, globals *Scope) *VariablesEvent {
	return &VariablesEvent{
		Locals:  locals,
		Globals: globals,
	}
}

// FileSwitchedEvent 程序停在了另一个文件中
type FileSwitchedEvent struct {
	From string
	To   string
}

func NewFileSwitchedEvent(from, to string) *FileSwitchedEvent {
	return &FileSwitchedEvent{
		From: from,
		To:   to,
	}
}

// WarningEvent 不影响调试会话的问题
type WarningEvent struct {
	Message string
}

func NewWarningEvent(message string) *WarningEvent {
	return &WarningEvent{Message: message}
}

// ExitedEvent
// 该event表明被调试对象已经退出并返回exit code。
type ExitedEvent struct {
	ExitCode int
	Message  string
}

func NewExitedEvent(code int, message string) *ExitedEvent {
	return &ExitedEvent{
		ExitCode: code,
		Message:  message,
	}
}

// TerminatedEvent 调试会话结束
type TerminatedEvent struct {
}

func NewTerminatedEvent() *TerminatedEvent {
	return &TerminatedEvent{}
}

// LaunchEvent
// 调试资源准备成功
type LaunchEvent struct {
	Success bool
	Message string
}

func NewLaunchEvent(success bool, message string) *LaunchEvent {
	return &LaunchEvent{
		Success: success,
		Message: message,
	}
}
