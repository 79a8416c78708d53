package pdb_debugger

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fansqz/pdb-debugger/config"
	"github.com/fansqz/pdb-debugger/constants"
	"github.com/fansqz/pdb-debugger/debugger"
	"github.com/fansqz/pdb-debugger/debugger/source"
	e "github.com/fansqz/pdb-debugger/error"
)

const (
	fileA = "/src/a.py"
	fileB = "/src/b.py"
)

var testSource = "import os\n\n# comment\nx = 1\n    y = 2\nprint(x)\n"

type recordingSender struct {
	commands []string
}

func (s *recordingSender) Send(command string) {
	s.commands = append(s.commands, command)
}

func newTestRegistry(t *testing.T) *BreakpointRegistry {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, fileA, []byte(testSource), 0o644))
	require.NoError(t, afero.WriteFile(fs, fileB, []byte(testSource), 0o644))
	r := NewBreakpointRegistry(config.DefaultProtocol(), source.NewReader(fs))
	r.SwitchFile("", fileA)
	return r
}

func lines(breakpoints []*debugger.Breakpoint) []int {
	var result []int
	for _, bp := range breakpoints {
		result = append(result, bp.Line)
	}
	return result
}

func TestToggleTwiceIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	before := r.Snapshot(fileA)

	reason, err := r.Toggle(fileA, 3)
	require.NoError(t, err)
	assert.Equal(t, constants.NewType, reason)
	assert.Equal(t, []int{3}, lines(r.Snapshot(fileA)))

	reason, err = r.Toggle(fileA, 3)
	require.NoError(t, err)
	assert.Equal(t, constants.RemovedType, reason)
	assert.Equal(t, before, r.Snapshot(fileA))
}

func TestToggleRejectsInvalidLines(t *testing.T) {
	r := newTestRegistry(t)
	for _, line := range []int{1, 2, 40} {
		_, err := r.Toggle(fileA, line)
		assert.True(t, errors.Is(err, e.ErrBreakpointOnInvalidLine), "line %d", line)
	}
	_, err := r.Toggle(fileA, 4)
	assert.NoError(t, err, "indented statement is executable")
	assert.Equal(t, []int{4}, lines(r.Snapshot(fileA)))
}

func TestToggleSendsWhenAttached(t *testing.T) {
	r := newTestRegistry(t)
	_, _ = r.Toggle(fileA, 0)

	sender := &recordingSender{}
	r.Attach(sender)
	_, _ = r.Toggle(fileA, 3)
	_, _ = r.Toggle(fileA, 0)
	r.Detach()
	_, _ = r.Toggle(fileA, 5)

	assert.Equal(t, []string{"b /src/a.py:4", "cl /src/a.py:1"}, sender.commands)
}

func TestSnapshotSorted(t *testing.T) {
	r := newTestRegistry(t)
	for _, line := range []int{5, 0, 3} {
		_, err := r.Toggle(fileA, line)
		require.NoError(t, err)
	}
	assert.Equal(t, []*debugger.Breakpoint{
		{File: fileA, Line: 0}, {File: fileA, Line: 3}, {File: fileA, Line: 5},
	}, r.Snapshot(fileA))
}

func TestSwitchFileRestoresBreakpoints(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Toggle(fileA, 5)
	require.NoError(t, err)

	r.SwitchFile(fileA, fileB)
	assert.Equal(t, fileB, r.Current())
	assert.Empty(t, r.Snapshot(fileB))

	r.SwitchFile(fileB, fileA)
	assert.Equal(t, []int{5}, lines(r.Snapshot(fileA)))
}

func TestClearAll(t *testing.T) {
	r := newTestRegistry(t)
	_, _ = r.Toggle(fileA, 0)
	_, _ = r.Toggle(fileB, 3)

	sender := &recordingSender{}
	r.Attach(sender)
	r.ClearAll()

	assert.Empty(t, r.Snapshot(fileA))
	assert.Equal(t, []int{3}, lines(r.Snapshot(fileB)))
	assert.Equal(t, []string{"cl", "y", "b /src/b.py:4"}, sender.commands)

	r.SwitchFile(fileA, fileB)
	r.SwitchFile(fileB, fileA)
	assert.Empty(t, r.Snapshot(fileA))
}

func TestPreloadCommandsCurrentFirst(t *testing.T) {
	r := newTestRegistry(t)
	_, _ = r.Toggle(fileB, 0)
	_, _ = r.Toggle(fileA, 5)
	_, _ = r.Toggle(fileA, 3)

	assert.Equal(t, []string{"b /src/a.py:4", "b /src/a.py:6", "b /src/b.py:1"}, r.PreloadCommands())
	assert.Equal(t, map[string][]int{fileA: {3, 5}, fileB: {0}}, r.All())
}

func TestSetSendsDifference(t *testing.T) {
	r := newTestRegistry(t)
	_, _ = r.Toggle(fileA, 0)
	_, _ = r.Toggle(fileA, 3)

	sender := &recordingSender{}
	r.Attach(sender)
	accepted := r.Set(fileA, []int{3, 5, 1})

	assert.Equal(t, []int{3, 5}, lines(accepted))
	assert.Equal(t, []string{"cl /src/a.py:1", "b /src/a.py:6"}, sender.commands)
	assert.Equal(t, []int{3, 5}, lines(r.Snapshot(fileA)))
}
