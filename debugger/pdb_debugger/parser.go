package pdb_debugger

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/fansqz/pdb-debugger/config"
	. "github.com/fansqz/pdb-debugger/debugger"
	e "github.com/fansqz/pdb-debugger/error"
)

// ProtocolEvent 从一个响应单元中解析出来的结构化事件
type ProtocolEvent interface {
	protocolEvent()
}

// ActiveLine 程序当前停止的位置，Line从1开始
type ActiveLine struct {
	File string
	Line int
}

// EnvUpdate 变量dump，Locals和Globals均为 [label, {name: [type, value]}]
type EnvUpdate struct {
	Locals  gjson.Result
	Globals gjson.Result
}

// StackUpdate 调用栈，从外到内排列
type StackUpdate struct {
	Frames  []*StackFrame
	Current int
}

// ConsoleLine 未识别的输出，原样转发到控制台
type ConsoleLine struct {
	Text string
}

func (ActiveLine) protocolEvent()  {}
func (EnvUpdate) protocolEvent()   {}
func (StackUpdate) protocolEvent() {}
func (ConsoleLine) protocolEvent() {}

// Parser 将pdb的一个响应单元按行分类
type Parser struct {
	protocol *config.Protocol
}

func NewParser(protocol *config.Protocol) *Parser {
	return &Parser{protocol: protocol}
}

// Parse classifies the lines of one chunk, in order.
func (p *Parser) Parse(chunk string) []ProtocolEvent {
	lines := strings.Split(chunk, p.protocol.EOL)
	var events []ProtocolEvent
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		if m := p.protocol.ActiveLine.FindStringSubmatch(line); m != nil {
			if p.protocol.IsSynthetic(m[1]) {
				continue
			}
			lineNo, _ := strconv.Atoi(m[2])
			events = append(events, ActiveLine{File: m[1], Line: lineNo})
			continue
		}
		if strings.HasPrefix(line, config.ClearAllPrompt) {
			continue
		}
		if m := p.protocol.BreakpointAdded.FindStringSubmatch(line); m != nil {
			logrus.Debugf("[Parser] breakpoint %s set at %s:%s", m[1], m[2], m[3])
			continue
		}
		if m := p.protocol.BreakpointDeleted.FindStringSubmatch(line); m != nil {
			logrus.Debugf("[Parser] breakpoint %s deleted at %s:%s", m[1], m[2], m[3])
			continue
		}
		if strings.HasPrefix(line, p.protocol.EnvMarker) {
			if event, err := p.parseEnv(strings.TrimPrefix(line, p.protocol.EnvMarker)); err != nil {
				logrus.Warnf("[Parser] %v", err)
			} else {
				events = append(events, event)
			}
			continue
		}
		// a `where` dump always opens with a frame, so indented output is not one
		if strings.HasPrefix(line, config.StackPrefix) && p.protocol.StackFrame.MatchString(line) {
			if event, rest, ok := p.parseStack(lines[i:]); ok {
				events = append(events, rest...)
				events = append(events, event)
				break
			}
		}
		events = append(events, ConsoleLine{Text: line + "\n"})
	}
	return events
}

func (p *Parser) parseEnv(payload string) (ProtocolEvent, error) {
	if !gjson.Valid(payload) {
		return nil, fmt.Errorf("%w: invalid json", e.ErrMalformedDumpPayload)
	}
	locals := gjson.Get(payload, "locals")
	globals := gjson.Get(payload, "globals")
	if !validScope(locals) || !validScope(globals) {
		return nil, fmt.Errorf("%w: missing locals or globals", e.ErrMalformedDumpPayload)
	}
	return EnvUpdate{Locals: locals, Globals: globals}, nil
}

func validScope(scope gjson.Result) bool {
	if !scope.IsArray() {
		return false
	}
	pair := scope.Array()
	return len(pair) == 2 && pair[1].IsObject()
}

// parseStack reads a `where` dump from the start of lines. Lines in the block
// that are not frames are returned as console lines. ok is false when no line
// has the frame shape, in which case the block is ordinary output.
func (p *Parser) parseStack(lines []string) (StackUpdate, []ProtocolEvent, bool) {
	var (
		frames  []*StackFrame
		console []ProtocolEvent
		matched bool
	)
	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, config.SourceEchoPrefix) {
			continue
		}
		m := p.protocol.StackFrame.FindStringSubmatch(line)
		if m == nil {
			console = append(console, ConsoleLine{Text: line + "\n"})
			continue
		}
		matched = true
		file := m[1]
		if p.protocol.IsSynthetic(file) || p.protocol.IsInternal(file) {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		frames = append(frames, &StackFrame{
			ID:   strconv.Itoa(len(frames)),
			Name: m[3],
			Path: file,
			Line: lineNo,
		})
	}
	if !matched {
		return StackUpdate{}, nil, false
	}
	return StackUpdate{Frames: frames, Current: len(frames) - 1}, console, true
}

// FrameLabel is the short display form of a frame.
func FrameLabel(frame *StackFrame) string {
	return fmt.Sprintf("%s:%d %s", filepath.Base(frame.Path), frame.Line, frame.Name)
}
