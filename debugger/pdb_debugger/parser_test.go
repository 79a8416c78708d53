package pdb_debugger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fansqz/pdb-debugger/config"
	"github.com/fansqz/pdb-debugger/debugger"
)

func newTestParser() *Parser {
	protocol := config.DefaultProtocol()
	protocol.EOL = "\n"
	return NewParser(protocol)
}

func TestParseActiveLine(t *testing.T) {
	events := newTestParser().Parse("> /home/u/app.py(12)<module>()\n-> x = compute()\n")
	require.Len(t, events, 2)
	assert.Equal(t, ActiveLine{File: "/home/u/app.py", Line: 12}, events[0])
	assert.Equal(t, ConsoleLine{Text: "-> x = compute()\n"}, events[1])
}

func TestParseSyntheticActiveLine(t *testing.T) {
	events := newTestParser().Parse("> <frozen importlib._bootstrap>(1007)_find_and_load()\n> <string>(1)<module>()\n")
	for _, ev := range events {
		_, isActive := ev.(ActiveLine)
		assert.False(t, isActive)
	}
}

func TestParseAcknowledgements(t *testing.T) {
	chunk := "Breakpoint 1 at /home/u/app.py:3\nDeleted breakpoint 1 at /home/u/app.py:3\nClear all breaks? \n"
	assert.Empty(t, newTestParser().Parse(chunk))
}

func TestParseEnv(t *testing.T) {
	chunk := `__ENV__:{"locals":["<frame>",{"x":["int","1"]}],"globals":["<module>",{"y":["str","a"]}]}` + "\n"
	events := newTestParser().Parse(chunk)
	require.Len(t, events, 1)
	env, ok := events[0].(EnvUpdate)
	require.True(t, ok)
	assert.Equal(t, "<frame>", env.Locals.Get("0").String())
	assert.Equal(t, "1", env.Locals.Get("1.x.1").String())
	assert.Equal(t, "a", env.Globals.Get("1.y.1").String())
}

func TestParseMalformedEnv(t *testing.T) {
	events := newTestParser().Parse("__ENV__:{\"locals\":[\nafter\n")
	assert.Equal(t, []ProtocolEvent{ConsoleLine{Text: "after\n"}}, events)

	events = newTestParser().Parse(`__ENV__:{"locals":1}` + "\n")
	assert.Empty(t, events)
}

func TestParseStack(t *testing.T) {
	chunk := "  /usr/lib/python3.11/bdb.py(580)run()\n" +
		"-> exec(cmd, globals, locals)\n" +
		"  <string>(1)<module>()\n" +
		"  /home/u/app.py(20)<module>()\n" +
		"-> main()\n" +
		"> /home/u/app.py(5)main()\n" +
		"-> x = 1\n"
	events := newTestParser().Parse(chunk)
	require.Len(t, events, 1)
	stack, ok := events[0].(StackUpdate)
	require.True(t, ok)
	assert.Equal(t, []*debugger.StackFrame{
		{ID: "0", Name: "<module>", Path: "/home/u/app.py", Line: 20},
		{ID: "1", Name: "main", Path: "/home/u/app.py", Line: 5},
	}, stack.Frames)
	assert.Equal(t, 1, stack.Current)
}

func TestParseStackInternalAndUserFrame(t *testing.T) {
	chunk := "  /opt/helper/jsonpdb.py(70)main()\n-> _pdb._runscript(mainpyfile)\n> /home/u/app.py(2)<module>()\n-> print(1)\n"
	events := newTestParser().Parse(chunk)
	require.Len(t, events, 1)
	stack := events[0].(StackUpdate)
	require.Len(t, stack.Frames, 1)
	assert.Equal(t, "/home/u/app.py", stack.Frames[0].Path)
	assert.Equal(t, 0, stack.Current)
}

func TestParseIndentedProgramOutput(t *testing.T) {
	events := newTestParser().Parse("  indented output\nplain\n")
	assert.Equal(t, []ProtocolEvent{
		ConsoleLine{Text: "  indented output\n"},
		ConsoleLine{Text: "plain\n"},
	}, events)
}

func TestParseIndentedOutputBeforeActiveLine(t *testing.T) {
	events := newTestParser().Parse("  hello\n> /src/app.py(3)<module>()\n-> def main():\n")
	assert.Equal(t, []ProtocolEvent{
		ConsoleLine{Text: "  hello\n"},
		ActiveLine{File: "/src/app.py", Line: 3},
		ConsoleLine{Text: "-> def main():\n"},
	}, events)
}

func TestParsePriorityOrder(t *testing.T) {
	chunk := "hello\n> /a.py(3)f()\n__ENV__:{\"locals\":[\"l\",{}],\"globals\":[\"g\",{}]}\n  /a.py(3)f()\n"
	events := newTestParser().Parse(chunk)
	require.Len(t, events, 4)
	assert.IsType(t, ConsoleLine{}, events[0])
	assert.IsType(t, ActiveLine{}, events[1])
	assert.IsType(t, EnvUpdate{}, events[2])
	assert.IsType(t, StackUpdate{}, events[3])
}

func TestFrameLabel(t *testing.T) {
	assert.Equal(t, "app.py:5 main", FrameLabel(&debugger.StackFrame{Name: "main", Path: "/home/u/app.py", Line: 5}))
}
