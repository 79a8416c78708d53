package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/fansqz/pdb-debugger/constants"
	"github.com/fansqz/pdb-debugger/debugger"
)

// threadID python程序只暴露一个线程
const threadID = 1

// launchArguments launch请求中使用的参数
type launchArguments struct {
	Program string
	Args    []string
	Cwd     string
}

func parseLaunchArguments(raw json.RawMessage) (*launchArguments, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid launch arguments")
	}
	args := &launchArguments{
		Program: gjson.GetBytes(raw, "program").String(),
		Cwd:     gjson.GetBytes(raw, "cwd").String(),
	}
	if args.Program == "" {
		return nil, fmt.Errorf("launch: program cannot be empty")
	}
	for _, arg := range gjson.GetBytes(raw, "args").Array() {
		args.Args = append(args.Args, arg.String())
	}
	return args, nil
}

func (d *DebugSession) dispatchRequest(ctx context.Context, request dap.Message) {
	switch request := request.(type) {
	case *dap.InitializeRequest:
		d.onInitializeRequest(request)
	case *dap.LaunchRequest:
		d.onLaunchRequest(request)
	case *dap.SetBreakpointsRequest:
		d.onSetBreakpointsRequest(ctx, request)
	case *dap.ConfigurationDoneRequest:
		d.onConfigurationDoneRequest(ctx, request)
	case *dap.ContinueRequest:
		d.onContinueRequest(ctx, request)
	case *dap.NextRequest:
		d.onNextRequest(ctx, request)
	case *dap.StepInRequest:
		d.onStepInRequest(ctx, request)
	case *dap.StepOutRequest:
		d.onStepOutRequest(ctx, request)
	case *dap.ThreadsRequest:
		d.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		d.onStackTraceRequest(ctx, request)
	case *dap.ScopesRequest:
		d.onScopesRequest(ctx, request)
	case *dap.VariablesRequest:
		d.onVariablesRequest(request)
	case *dap.SetVariableRequest:
		d.onSetVariableRequest(ctx, request)
	case *dap.EvaluateRequest:
		d.onEvaluateRequest(ctx, request)
	case *dap.TerminateRequest:
		d.onTerminateRequest(ctx, request)
	case *dap.DisconnectRequest:
		d.onDisconnectRequest(ctx, request)
	default:
		if req, ok := request.(dap.RequestMessage); ok {
			r := req.GetRequest()
			d.send(newErrorResponse(r.Seq, r.Command, fmt.Sprintf("%s is not yet supported", r.Command)))
			return
		}
		logrus.Warnf("[Server] unable to process %#v", request)
	}
}

// -----------------------------------------------------------------------
// Request Handlers

func (d *DebugSession) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsSetVariable = true
	response.Body.SupportsTerminateRequest = true
	d.send(response)
	// 客户端收到initialized后开始设置断点，以configurationDone结束配置
	d.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
}

func (d *DebugSession) onLaunchRequest(request *dap.LaunchRequest) {
	args, err := parseLaunchArguments(request.Arguments)
	if err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	d.launch = args
	response := &dap.LaunchResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onSetBreakpointsRequest(ctx context.Context, request *dap.SetBreakpointsRequest) {
	file := request.Arguments.Source.Path
	lines := make([]int, 0, len(request.Arguments.Breakpoints))
	for _, b := range request.Arguments.Breakpoints {
		lines = append(lines, b.Line-1)
	}
	accepted, err := d.debugger.SetBreakpoints(ctx, file, lines)
	if err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	verified := make(map[int]bool, len(accepted))
	for _, b := range accepted {
		verified[b.Line] = true
	}
	response := &dap.SetBreakpointsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Breakpoints = make([]dap.Breakpoint, len(request.Arguments.Breakpoints))
	for i, b := range request.Arguments.Breakpoints {
		response.Body.Breakpoints[i].Line = b.Line
		response.Body.Breakpoints[i].Verified = verified[b.Line-1]
		response.Body.Breakpoints[i].Source = &request.Arguments.Source
		if !verified[b.Line-1] {
			response.Body.Breakpoints[i].Message = "line is blank or a comment"
		}
	}
	d.send(response)
}

func (d *DebugSession) onConfigurationDoneRequest(ctx context.Context, request *dap.ConfigurationDoneRequest) {
	if d.launch == nil {
		d.send(newErrorResponse(request.Seq, request.Command, "launch request is required"))
		return
	}
	err := d.debugger.Start(ctx, &debugger.StartOption{
		Program:  d.launch.Program,
		Args:     d.launch.Args,
		Cwd:      d.launch.Cwd,
		Callback: d.onDebuggerEvent,
	})
	if err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.ConfigurationDoneResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onContinueRequest(ctx context.Context, request *dap.ContinueRequest) {
	if err := d.debugger.Continue(ctx); err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.ContinueResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.AllThreadsContinued = true
	d.send(response)
}

func (d *DebugSession) onNextRequest(ctx context.Context, request *dap.NextRequest) {
	if err := d.debugger.StepOver(ctx); err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.NextResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onStepInRequest(ctx context.Context, request *dap.StepInRequest) {
	if err := d.debugger.StepIn(ctx); err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.StepInResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onStepOutRequest(ctx context.Context, request *dap.StepOutRequest) {
	if err := d.debugger.StepOut(ctx); err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.StepOutResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Threads = []dap.Thread{{Id: threadID, Name: "main"}}
	d.send(response)
}

// onStackTraceRequest 客户端需要最内层的栈帧在前
func (d *DebugSession) onStackTraceRequest(ctx context.Context, request *dap.StackTraceRequest) {
	frames, err := d.debugger.GetStackTrace(ctx)
	if err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	stackFrames := make([]dap.StackFrame, 0, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		frame := frames[i]
		stackFrames = append(stackFrames, dap.StackFrame{
			Id:   i,
			Name: frame.Name,
			Source: &dap.Source{
				Name: filepath.Base(frame.Path),
				Path: frame.Path,
			},
			Line:   frame.Line,
			Column: 1,
		})
	}
	response := &dap.StackTraceResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.StackTraceResponseBody{
		StackFrames: stackFrames,
		TotalFrames: len(stackFrames),
	}
	d.send(response)
}

// onScopesRequest 返回选中栈帧的作用域，重新分配变量引用
func (d *DebugSession) onScopesRequest(ctx context.Context, request *dap.ScopesRequest) {
	scopes, err := d.debugger.GetScopes(ctx)
	if err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	d.handles.reset()
	response := &dap.ScopesResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Scopes = make([]dap.Scope, 0, len(scopes))
	for _, scope := range scopes {
		name := "Locals"
		if scope.Name == constants.ScopeGlobal {
			name = "Globals"
		}
		response.Body.Scopes = append(response.Body.Scopes, dap.Scope{
			Name:               name,
			VariablesReference: d.handles.create(scope.Variables),
			Expensive:          scope.Name == constants.ScopeGlobal,
		})
	}
	d.send(response)
}

func (d *DebugSession) onVariablesRequest(request *dap.VariablesRequest) {
	variables, ok := d.handles.get(request.Arguments.VariablesReference)
	if !ok {
		d.send(newErrorResponse(request.Seq, request.Command,
			fmt.Sprintf("unknown variables reference %d", request.Arguments.VariablesReference)))
		return
	}
	response := &dap.VariablesResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Variables = make([]dap.Variable, 0, len(variables))
	for _, v := range variables {
		response.Body.Variables = append(response.Body.Variables, d.toDapVariable(v))
	}
	d.send(response)
}

func (d *DebugSession) onSetVariableRequest(ctx context.Context, request *dap.SetVariableRequest) {
	variables, _ := d.handles.get(request.Arguments.VariablesReference)
	var target *debugger.Variable
	for _, v := range variables {
		if v.Name == request.Arguments.Name {
			target = v
			break
		}
	}
	if target == nil {
		d.send(newErrorResponse(request.Seq, request.Command,
			fmt.Sprintf("unknown variable %s", request.Arguments.Name)))
		return
	}
	if err := d.debugger.SetVariable(ctx, target.Expression, request.Arguments.Value); err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.SetVariableResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Value = request.Arguments.Value
	d.send(response)
}

// onEvaluateRequest 表达式交给调试进程执行，结果以输出事件返回
func (d *DebugSession) onEvaluateRequest(ctx context.Context, request *dap.EvaluateRequest) {
	if err := d.debugger.Send(ctx, constants.CmdExecStatement+request.Arguments.Expression); err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.EvaluateResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onTerminateRequest(ctx context.Context, request *dap.TerminateRequest) {
	if err := d.debugger.Terminate(ctx); err != nil {
		d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
		return
	}
	response := &dap.TerminateResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onDisconnectRequest(ctx context.Context, request *dap.DisconnectRequest) {
	if err := d.debugger.Terminate(ctx); err != nil {
		logrus.Warnf("[Server] terminate on disconnect: %v", err)
	}
	response := &dap.DisconnectResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

// -----------------------------------------------------------------------
// Debugger Events

// onDebuggerEvent 在调试器的协程中执行，只能转换事件并放入发送队列
func (d *DebugSession) onDebuggerEvent(data interface{}) {
	switch event := data.(type) {
	case *debugger.StoppedEvent:
		if event.Reason != constants.FrameStopped {
			d.pendingStop = event
		}
	case *debugger.StackEvent:
		if d.pendingStop == nil {
			return
		}
		stopped := &dap.StoppedEvent{Event: *newEvent("stopped")}
		stopped.Body.Reason = string(d.pendingStop.Reason)
		stopped.Body.ThreadId = threadID
		stopped.Body.AllThreadsStopped = true
		d.pendingStop = nil
		d.send(stopped)
	case *debugger.ContinuedEvent:
		d.pendingStop = nil
		continued := &dap.ContinuedEvent{Event: *newEvent("continued")}
		continued.Body.ThreadId = threadID
		continued.Body.AllThreadsContinued = true
		d.send(continued)
	case *debugger.OutputEvent:
		d.send(newOutputEvent(string(event.Category), event.Output))
	case *debugger.WarningEvent:
		d.send(newOutputEvent("important", event.Message+"\n"))
	case *debugger.ExitedEvent:
		exited := &dap.ExitedEvent{Event: *newEvent("exited")}
		exited.Body.ExitCode = event.ExitCode
		d.send(exited)
	case *debugger.TerminatedEvent:
		d.pendingStop = nil
		d.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
	}
}

func (d *DebugSession) toDapVariable(v *debugger.Variable) dap.Variable {
	value := ""
	if v.Value != nil {
		value = *v.Value
	}
	variable := dap.Variable{
		Name:         v.Name,
		Value:        value,
		Type:         v.Type,
		EvaluateName: v.Expression,
	}
	if len(v.Children) > 0 {
		variable.VariablesReference = d.handles.create(v.Children)
		if v.Kind == debugger.SequenceKind {
			variable.IndexedVariables = len(v.Children)
		} else {
			variable.NamedVariables = len(v.Children)
		}
	}
	return variable
}

// variableHandles 变量引用到子变量的映射，0表示没有子变量
type variableHandles struct {
	next    int
	handles map[int][]*debugger.Variable
}

func newVariableHandles() *variableHandles {
	return &variableHandles{next: 1, handles: make(map[int][]*debugger.Variable)}
}

func (h *variableHandles) create(variables []*debugger.Variable) int {
	ref := h.next
	h.next++
	h.handles[ref] = variables
	return ref
}

func (h *variableHandles) get(ref int) ([]*debugger.Variable, bool) {
	variables, ok := h.handles[ref]
	return variables, ok
}

func (h *variableHandles) reset() {
	h.next = 1
	h.handles = make(map[int][]*debugger.Variable)
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func newOutputEvent(category string, output string) *dap.OutputEvent {
	event := &dap.OutputEvent{Event: *newEvent("output")}
	event.Body.Category = category
	event.Body.Output = output
	return event
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

func newErrorResponse(requestSeq int, command string, message string) *dap.ErrorResponse {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Message = message
	er.Body.Error = &dap.ErrorMessage{
		Id:     12345,
		Format: message,
	}
	return er
}
