package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fansqz/pdb-debugger/constants"
	"github.com/fansqz/pdb-debugger/debugger"
	"github.com/fansqz/pdb-debugger/debugger/source"
)

const consoleScript = "/src/app.py"

func newTestConsole(t *testing.T) (*Console, *fakeDebugger, *bytes.Buffer) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, consoleScript, []byte("import os\n\ndef main():\n    x = 1\n    return x\n"), 0o644))
	fake := newFakeDebugger()
	out := &bytes.Buffer{}
	console := NewConsole(fake, out, source.NewReader(fs))
	require.NoError(t, console.Start(context.Background(), consoleScript, []string{"-v"}))
	return console, fake, out
}

func (c *Console) output(out *bytes.Buffer) string {
	c.lock.Lock()
	defer c.lock.Unlock()
	text := out.String()
	out.Reset()
	return text
}

func TestConsoleStepping(t *testing.T) {
	console, fake, _ := newTestConsole(t)
	ctx := context.Background()
	assert.Equal(t, []string{"-v"}, fake.option.Args)

	for _, line := range []string{"s", "n", "r", "c", "  ", "cl", "f 1", "set d['k'] = 3", "!print(x)"} {
		quit, err := console.Execute(ctx, line)
		require.NoError(t, err, line)
		assert.False(t, quit)
	}
	assert.Equal(t, []string{
		"start /src/app.py", "stepIn", "stepOver", "stepOut", "continue",
		"clear", "selectFrame", "setVariable d['k']=3", "send !print(x)",
	}, fake.Calls())

	quit, err := console.Execute(ctx, "q")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestConsoleBadInput(t *testing.T) {
	console, _, _ := newTestConsole(t)
	ctx := context.Background()
	for _, line := range []string{"f top", "b zero", "b 0", "set x", "jump 3"} {
		_, err := console.Execute(ctx, line)
		assert.Error(t, err, line)
	}
}

func TestConsoleBreakpoints(t *testing.T) {
	console, fake, out := newTestConsole(t)
	ctx := context.Background()

	_, err := console.Execute(ctx, "b 4")
	require.NoError(t, err)
	assert.Equal(t, "Breakpoint set at /src/app.py:4\n", console.output(out))
	assert.Equal(t, []int{3}, fake.breakpoints[consoleScript])

	_, err = console.Execute(ctx, "bl")
	require.NoError(t, err)
	assert.Equal(t, "/src/app.py:4  x = 1\n", console.output(out))

	_, err = console.Execute(ctx, "b /src/lib.py:2")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, fake.breakpoints["/src/lib.py"])

	_, err = console.Execute(ctx, "b 4")
	require.NoError(t, err)
	assert.Contains(t, console.output(out), "Breakpoint removed at /src/app.py:4")
}

func TestConsoleEvents(t *testing.T) {
	console, fake, out := newTestConsole(t)

	fake.emit(debugger.NewStoppedEvent(constants.StepStopped, consoleScript, 4))
	text := console.output(out)
	assert.Contains(t, text, "app.py:4")
	assert.Contains(t, text, "x = 1")

	fake.emit(debugger.NewStoppedEvent(constants.FrameStopped, consoleScript, 3))
	assert.Empty(t, console.output(out))

	fake.emit(debugger.NewOutputEvent(constants.StdoutOutput, "hello\n"))
	assert.Equal(t, "hello\n", console.output(out))
	fake.emit(debugger.NewOutputEvent(constants.StderrOutput, "boom"))
	assert.Contains(t, console.output(out), "boom")
	fake.emit(debugger.NewWarningEvent("slow"))
	assert.Contains(t, console.output(out), "warning: slow")
	fake.emit(debugger.NewExitedEvent(2, "Execution finished."))
	assert.Contains(t, console.output(out), "program exited with code 2")
}

func TestConsoleInspect(t *testing.T) {
	console, fake, out := newTestConsole(t)
	ctx := context.Background()
	fake.frames = []*debugger.StackFrame{
		{ID: "0", Name: "<module>", Path: consoleScript, Line: 7},
		{ID: "1", Name: "main", Path: consoleScript, Line: 4},
	}
	fake.scopes = []*debugger.Scope{
		{Name: constants.ScopeLocal, Label: "<frame main>", Variables: []*debugger.Variable{
			{Name: "items", Type: "list", Kind: debugger.SequenceKind, Children: []*debugger.Variable{
				{Name: "[0]", Type: "str", Value: strPtr("'a'")},
			}},
		}},
	}
	fake.emit(debugger.NewStackEvent(fake.frames, 1))

	_, err := console.Execute(ctx, "bt")
	require.NoError(t, err)
	assert.Equal(t, "  0 app.py:7 <module>\n> 1 app.py:4 main\n", console.output(out))

	_, err = console.Execute(ctx, "vars")
	require.NoError(t, err)
	text := console.output(out)
	assert.Contains(t, text, "locals")
	assert.Contains(t, text, "items")
	assert.Contains(t, text, "  [0]")
	assert.Contains(t, text, "= 'a'")

	_, err = console.Execute(ctx, "vars --json")
	require.NoError(t, err)
	text = console.output(out)
	assert.Contains(t, text, `"name": "items"`)
	assert.Contains(t, text, `"value": "'a'"`)
}
