package pdb_debugger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/sirupsen/logrus"

	"github.com/fansqz/pdb-debugger/config"
	"github.com/fansqz/pdb-debugger/constants"
	. "github.com/fansqz/pdb-debugger/debugger"
	. "github.com/fansqz/pdb-debugger/debugger/utils"
	e "github.com/fansqz/pdb-debugger/error"
)

// LineSource 提供源文件某一行的内容，行号从0开始
type LineSource interface {
	Line(file string, line int) string
}

// CommandSender 向调试进程发送一条命令，不等待响应
type CommandSender interface {
	Send(command string)
}

// BreakpointRegistry 断点的唯一数据源
// 当前文件的断点保存在lines中，其他文件的断点保存在saved中，切换文件时交换
// 会话存在时，断点的变化会立即发送给调试进程
type BreakpointRegistry struct {
	protocol *config.Protocol
	source   LineSource
	sender   CommandSender

	current string
	lines   *treeset.Set
	saved   map[string][]int
}

func NewBreakpointRegistry(protocol *config.Protocol, source LineSource) *BreakpointRegistry {
	return &BreakpointRegistry{
		protocol: protocol,
		source:   source,
		lines:    treeset.NewWith(utils.IntComparator),
		saved:    make(map[string][]int),
	}
}

// Current returns the file whose breakpoints are in memory.
func (r *BreakpointRegistry) Current() string {
	return r.current
}

// Attach starts mirroring changes to sender.
func (r *BreakpointRegistry) Attach(sender CommandSender) {
	r.sender = sender
}

func (r *BreakpointRegistry) Detach() {
	r.sender = nil
}

// Toggle adds or removes the breakpoint at the 0-based line of file.
func (r *BreakpointRegistry) Toggle(file string, line int) (constants.BreakpointReasonType, error) {
	file = NormalizePath(file)
	lines := r.linesOf(file)
	if containsLine(lines, line) {
		r.store(file, removeLine(lines, line))
		r.send(clearCommand(file, line))
		return constants.RemovedType, nil
	}
	if !r.executable(file, line) {
		return "", fmt.Errorf("%w: %s:%d", e.ErrBreakpointOnInvalidLine, file, line+1)
	}
	r.store(file, append(lines, line))
	r.send(breakCommand(file, line))
	return constants.NewType, nil
}

// Set replaces the breakpoints of file and returns the accepted ones.
// Only the difference to the previous set is sent.
func (r *BreakpointRegistry) Set(file string, lines []int) []*Breakpoint {
	file = NormalizePath(file)
	old := r.linesOf(file)
	want := treeset.NewWith(utils.IntComparator)
	for _, line := range lines {
		if containsLine(old, line) || r.executable(file, line) {
			want.Add(line)
		} else {
			logrus.Infof("[BreakpointRegistry] reject %s:%d", file, line+1)
		}
	}
	for _, line := range old {
		if !want.Contains(line) {
			r.send(clearCommand(file, line))
		}
	}
	accepted := setLines(want)
	for _, line := range accepted {
		if !containsLine(old, line) {
			r.send(breakCommand(file, line))
		}
	}
	r.store(file, accepted)
	return toBreakpoints(file, accepted)
}

// Has reports whether the 0-based line of file holds a breakpoint.
func (r *BreakpointRegistry) Has(file string, line int) bool {
	return containsLine(r.linesOf(NormalizePath(file)), line)
}

// Snapshot returns the breakpoints of file sorted by line.
func (r *BreakpointRegistry) Snapshot(file string) []*Breakpoint {
	file = NormalizePath(file)
	return toBreakpoints(file, r.linesOf(file))
}

// SwitchFile saves the breakpoints of oldFile and loads those recorded for newFile.
func (r *BreakpointRegistry) SwitchFile(oldFile, newFile string) {
	oldFile, newFile = NormalizePath(oldFile), NormalizePath(newFile)
	if oldFile != "" && oldFile == r.current {
		r.saved[oldFile] = setLines(r.lines)
	}
	r.current = newFile
	r.lines.Clear()
	for _, line := range r.saved[newFile] {
		r.lines.Add(line)
	}
}

// ClearAll removes the breakpoints of the current file. The debugger can
// only clear everything at once, so the other files' breakpoints are sent again.
func (r *BreakpointRegistry) ClearAll() {
	r.lines.Clear()
	delete(r.saved, r.current)
	if r.sender == nil {
		return
	}
	r.send(constants.CmdClear)
	r.send(constants.CmdConfirm)
	for _, file := range r.savedFiles() {
		for _, line := range r.saved[file] {
			r.send(breakCommand(file, line))
		}
	}
}

// PreloadCommands returns the set commands for every known breakpoint,
// current file first.
func (r *BreakpointRegistry) PreloadCommands() []string {
	var commands []string
	for _, line := range setLines(r.lines) {
		commands = append(commands, breakCommand(r.current, line))
	}
	for _, file := range r.savedFiles() {
		for _, line := range r.saved[file] {
			commands = append(commands, breakCommand(file, line))
		}
	}
	return commands
}

// All returns every file's breakpoints.
func (r *BreakpointRegistry) All() map[string][]int {
	all := make(map[string][]int, len(r.saved)+1)
	for file, lines := range r.saved {
		if len(lines) > 0 {
			all[file] = append([]int(nil), lines...)
		}
	}
	if r.current != "" {
		if lines := setLines(r.lines); len(lines) > 0 {
			all[r.current] = lines
		}
	}
	return all
}

// executable is the coarse check for lines that can hold a breakpoint:
// not blank and not a comment.
func (r *BreakpointRegistry) executable(file string, line int) bool {
	text := strings.TrimSpace(r.source.Line(file, line))
	return text != "" && !strings.HasPrefix(text, r.protocol.CommentMarker)
}

func (r *BreakpointRegistry) linesOf(file string) []int {
	if file == r.current {
		return setLines(r.lines)
	}
	return append([]int(nil), r.saved[file]...)
}

func (r *BreakpointRegistry) store(file string, lines []int) {
	if file == r.current {
		r.lines.Clear()
		for _, line := range lines {
			r.lines.Add(line)
		}
		return
	}
	sort.Ints(lines)
	if len(lines) == 0 {
		delete(r.saved, file)
		return
	}
	r.saved[file] = lines
}

func (r *BreakpointRegistry) savedFiles() []string {
	files := make([]string, 0, len(r.saved))
	for file := range r.saved {
		if file != r.current {
			files = append(files, file)
		}
	}
	sort.Strings(files)
	return files
}

func (r *BreakpointRegistry) send(command string) {
	if r.sender != nil {
		r.sender.Send(command)
	}
}

func breakCommand(file string, line int) string {
	return constants.CmdBreak + " " + file + ":" + strconv.Itoa(line+1)
}

func clearCommand(file string, line int) string {
	return constants.CmdClear + " " + file + ":" + strconv.Itoa(line+1)
}

func setLines(set *treeset.Set) []int {
	lines := make([]int, 0, set.Size())
	for _, v := range set.Values() {
		lines = append(lines, v.(int))
	}
	return lines
}

func containsLine(lines []int, line int) bool {
	for _, l := range lines {
		if l == line {
			return true
		}
	}
	return false
}

func removeLine(lines []int, line int) []int {
	kept := lines[:0]
	for _, l := range lines {
		if l != line {
			kept = append(kept, l)
		}
	}
	return kept
}

func toBreakpoints(file string, lines []int) []*Breakpoint {
	breakpoints := make([]*Breakpoint, 0, len(lines))
	for _, line := range lines {
		breakpoints = append(breakpoints, NewBreakpoint(file, line))
	}
	return breakpoints
}
