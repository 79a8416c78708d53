package debugger

import (
	"context"
)

type NotificationCallback func(interface{})

// Debugger
// 用户的一次调试过程处理
// 断点按文件保存，切换文件时恢复
// 需要保证并发安全，回调在调试器内部协程中执行，回调中不能同步调用Debugger的方法
type Debugger interface {
	// Start
	// 开始调试，callback用来异步处理调试事件
	Start(ctx context.Context, option *StartOption) error
	// Send 输入，原样转发给调试进程
	Send(ctx context.Context, input string) error
	// StepOver 下一步，不会进入函数内部
	StepOver(ctx context.Context) error
	// StepIn 下一步，会进入函数内部
	StepIn(ctx context.Context) error
	// StepOut 单步退出
	StepOut(ctx context.Context) error
	// Continue 忽略继续执行
	Continue(ctx context.Context) error
	// SelectFrame 切换当前栈帧，index为GetStackTrace中的下标
	SelectFrame(ctx context.Context, index int) error
	// LoadFile 切换当前文件，恢复该文件保存的断点
	LoadFile(ctx context.Context, file string) error
	// ToggleBreakpoint 切换断点，返回断点是否被添加
	ToggleBreakpoint(ctx context.Context, file string, line int) (bool, error)
	// SetBreakpoints 设置某个文件的全部断点
	// 返回的是设置成功的断点
	SetBreakpoints(ctx context.Context, file string, lines []int) ([]*Breakpoint, error)
	// ClearBreakpoints 清除当前文件的所有断点
	ClearBreakpoints(ctx context.Context) error
	// GetBreakpoints 获取某个文件的断点
	GetBreakpoints(ctx context.Context, file string) ([]*Breakpoint, error)
	// SetVariable 在当前栈帧中修改变量的值
	SetVariable(ctx context.Context, expression string, value string) error
	// GetStackTrace 获取栈帧，从外到内排列
	GetStackTrace(ctx context.Context) ([]*StackFrame, error)
	// GetScopes 获取当前栈帧的局部变量和全局变量
	GetScopes(ctx context.Context) ([]*Scope, error)
	// Terminate 终止调试
	// 调用完该命令以后可以重新Start
	Terminate(ctx context.Context) error
}
