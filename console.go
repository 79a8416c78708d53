package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"golang.org/x/term"

	"github.com/fansqz/pdb-debugger/config"
	"github.com/fansqz/pdb-debugger/constants"
	"github.com/fansqz/pdb-debugger/debugger"
	"github.com/fansqz/pdb-debugger/debugger/pdb_debugger"
	"github.com/fansqz/pdb-debugger/debugger/source"
	"github.com/fansqz/pdb-debugger/debugger/utils"
)

var (
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	nameStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

var consoleCommands = []string{
	"s", "n", "r", "c", "b", "cl", "bl", "bt", "f", "vars", "set", "restart", "help", "q",
}

const consoleHelp = `s            step into
n            step over
r            step out of the current function
c            continue
b [file:]N   toggle the breakpoint at line N
cl           clear the breakpoints of the current file
bl           list the breakpoints of the current file
bt           show the call stack
f N          select frame N
vars [--json] show the variables of the selected frame
set E=V      assign V to the expression E
!stmt        run a python statement in the selected frame
restart      run the program again
q            quit
`

var debugCmd = &cobra.Command{
	Use:   "debug <script> [args...]",
	Short: "Debug a python script in an interactive console",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		QuietLogger()
		return runConsole(cmd.Context(), args[0], args[1:])
	},
}

func runConsole(ctx context.Context, program string, args []string) error {
	d, err := pdb_debugger.NewPdbDebugger(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	completer := readline.NewPrefixCompleter()
	for _, command := range consoleCommands {
		completer.Children = append(completer.Children, readline.PcItem(command))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "(pdb-debugger) ",
		AutoComplete:    completer,
		HistoryFile:     filepath.Join(config.ConfigDir(), "history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	console := NewConsole(d, rl.Stdout(), source.NewReader(nil))
	console.color = term.IsTerminal(int(os.Stdout.Fd()))
	if err = console.Start(ctx, program, args); err != nil {
		return err
	}
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return d.Terminate(ctx)
			}
			return err
		}
		quit, err := console.Execute(ctx, line)
		if err != nil {
			console.printf("%s\n", errorStyle.Render(err.Error()))
		}
		if quit {
			return nil
		}
	}
}

// Console 交互式调试控制台
// 调试事件在调试器协程中输出，命令结果在读取命令的协程中输出，通过lock串行化
type Console struct {
	debugger debugger.Debugger
	source   *source.Reader
	color    bool

	lock     sync.Mutex
	out      io.Writer
	program  string
	args     []string
	file     string
	selected int
}

func NewConsole(d debugger.Debugger, out io.Writer, reader *source.Reader) *Console {
	return &Console{debugger: d, out: out, source: reader}
}

// Start 启动被调试的程序，当前文件为该程序
func (c *Console) Start(ctx context.Context, program string, args []string) error {
	program = utils.NormalizePath(program)
	c.lock.Lock()
	c.program, c.args, c.file = program, args, program
	c.lock.Unlock()
	return c.debugger.Start(ctx, &debugger.StartOption{
		Program:  program,
		Args:     args,
		Callback: c.onEvent,
	})
}

// Execute 执行一条控制台命令，quit为true时退出控制台
func (c *Console) Execute(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, constants.CmdExecStatement) {
		return false, c.debugger.Send(ctx, line)
	}
	fields := strings.Fields(line)
	command, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	switch command {
	case "s", "step":
		return false, c.debugger.StepIn(ctx)
	case "n", "next":
		return false, c.debugger.StepOver(ctx)
	case "r", "return":
		return false, c.debugger.StepOut(ctx)
	case "c", "continue":
		return false, c.debugger.Continue(ctx)
	case "b", "break":
		return false, c.toggleBreakpoint(ctx, rest)
	case "cl", "clear":
		return false, c.debugger.ClearBreakpoints(ctx)
	case "bl":
		return false, c.listBreakpoints(ctx)
	case "bt", "where":
		return false, c.printStack(ctx)
	case "f", "frame":
		index, err := strconv.Atoi(rest)
		if err != nil {
			return false, fmt.Errorf("frame: %q is not a frame number", rest)
		}
		if err = c.debugger.SelectFrame(ctx, index); err != nil {
			return false, err
		}
		c.lock.Lock()
		c.selected = index
		c.lock.Unlock()
		return false, nil
	case "vars":
		return false, c.printVariables(ctx, rest == "--json")
	case "set":
		expression, value, ok := strings.Cut(rest, "=")
		if !ok {
			return false, errors.New("set: expected expression=value")
		}
		return false, c.debugger.SetVariable(ctx, strings.TrimSpace(expression), strings.TrimSpace(value))
	case "restart":
		if err := c.debugger.Terminate(ctx); err != nil {
			return false, err
		}
		c.lock.Lock()
		program, args := c.program, c.args
		c.lock.Unlock()
		return false, c.Start(ctx, program, args)
	case "help", "h":
		c.printf("%s", consoleHelp)
		return false, nil
	case "q", "quit", "exit":
		return true, c.debugger.Terminate(ctx)
	default:
		return false, fmt.Errorf("unknown command %q, type help", command)
	}
}

func (c *Console) toggleBreakpoint(ctx context.Context, arg string) error {
	c.lock.Lock()
	file := c.file
	c.lock.Unlock()
	lineText := arg
	if i := strings.LastIndex(arg, ":"); i >= 0 {
		file, lineText = utils.NormalizePath(arg[:i]), arg[i+1:]
	}
	line, err := strconv.Atoi(lineText)
	if err != nil || line < 1 {
		return fmt.Errorf("break: %q is not a line number", lineText)
	}
	added, err := c.debugger.ToggleBreakpoint(ctx, file, line-1)
	if err != nil {
		return err
	}
	if added {
		c.printf("Breakpoint set at %s:%d\n", file, line)
	} else {
		c.printf("Breakpoint removed at %s:%d\n", file, line)
	}
	return nil
}

func (c *Console) listBreakpoints(ctx context.Context) error {
	c.lock.Lock()
	file := c.file
	c.lock.Unlock()
	breakpoints, err := c.debugger.GetBreakpoints(ctx, file)
	if err != nil {
		return err
	}
	if len(breakpoints) == 0 {
		c.printf("%s\n", dimStyle.Render("no breakpoints in "+filepath.Base(file)))
		return nil
	}
	var b strings.Builder
	for _, bp := range breakpoints {
		fmt.Fprintf(&b, "%s:%d  %s\n", bp.File, bp.Line+1, strings.TrimSpace(c.source.Line(bp.File, bp.Line)))
	}
	c.printf("%s", b.String())
	return nil
}

func (c *Console) printStack(ctx context.Context) error {
	frames, err := c.debugger.GetStackTrace(ctx)
	if err != nil {
		return err
	}
	c.lock.Lock()
	selected := c.selected
	c.lock.Unlock()
	var b strings.Builder
	for i, frame := range frames {
		marker := " "
		if i == selected {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %d %s\n", marker, i, pdb_debugger.FrameLabel(frame))
	}
	c.printf("%s", b.String())
	return nil
}

func (c *Console) printVariables(ctx context.Context, asJSON bool) error {
	scopes, err := c.debugger.GetScopes(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		data, err := json.Marshal(scopes)
		if err != nil {
			return err
		}
		data = pretty.Pretty(data)
		if c.color {
			data = pretty.Color(data, nil)
		}
		c.printf("%s", data)
		return nil
	}
	var b strings.Builder
	for _, scope := range scopes {
		fmt.Fprintf(&b, "%s %s\n", locationStyle.Render(string(scope.Name)), dimStyle.Render(scope.Label))
		writeVariables(&b, scope.Variables, 1)
	}
	c.printf("%s", b.String())
	return nil
}

func writeVariables(b *strings.Builder, variables []*debugger.Variable, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, v := range variables {
		fmt.Fprintf(b, "%s%s %s", indent, nameStyle.Render(v.Name), dimStyle.Render(v.Type))
		if v.Value != nil {
			fmt.Fprintf(b, " = %s", *v.Value)
		}
		b.WriteString("\n")
		writeVariables(b, v.Children, depth+1)
	}
}

// onEvent 调试器事件回调，不能同步调用调试器
func (c *Console) onEvent(data interface{}) {
	switch event := data.(type) {
	case *debugger.StoppedEvent:
		if event.Reason == constants.FrameStopped {
			return
		}
		c.lock.Lock()
		c.file = utils.NormalizePath(event.File)
		c.lock.Unlock()
		text := strings.TrimSpace(c.source.Line(event.File, event.Line-1))
		c.printf("%s  %s\n", locationStyle.Render(fmt.Sprintf("%s:%d", filepath.Base(event.File), event.Line)), text)
	case *debugger.StackEvent:
		c.lock.Lock()
		c.selected = event.Current
		c.lock.Unlock()
	case *debugger.FileSwitchedEvent:
		c.printf("%s\n", dimStyle.Render("file: "+event.To))
	case *debugger.OutputEvent:
		if event.Category == constants.StderrOutput {
			c.printf("%s", errorStyle.Render(event.Output))
			return
		}
		c.printf("%s", event.Output)
	case *debugger.WarningEvent:
		c.printf("%s\n", warningStyle.Render("warning: "+event.Message))
	case *debugger.ExitedEvent:
		c.printf("%s\n", dimStyle.Render(fmt.Sprintf("program exited with code %d", event.ExitCode)))
	}
}

func (c *Console) printf(format string, args ...interface{}) {
	c.lock.Lock()
	defer c.lock.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
