package error

import "errors"

var (
	ErrSpawnFailure               = errors.New("debugger process could not be started")
	ErrSessionAlreadyActive       = errors.New("a debug session is already active")
	ErrMalformedDumpPayload       = errors.New("malformed variable dump payload")
	ErrBreakpointOnInvalidLine    = errors.New("breakpoint on blank or comment line")
	ErrKillTimeout                = errors.New("debugger process did not exit in time")
	ErrDebuggerIsClosed           = errors.New("debug is closed")
	ErrProgramIsRunningOptionFail = errors.New("The program is running")
	ErrFrameOutOfRange            = errors.New("stack frame index out of range")
)
