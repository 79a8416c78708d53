package source

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/main.py", []byte("import os\r\n\n# note\nprint(1)"), 0o644))
	r := NewReader(fs)

	tests := []struct {
		line int
		want string
	}{
		{0, "import os"},
		{1, ""},
		{2, "# note"},
		{3, "print(1)"},
		{4, ""},
		{-1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Line("/src/main.py", tt.line))
	}
	assert.Equal(t, "", r.Line("/src/missing.py", 0))
	assert.True(t, r.Exists("/src/main.py"))
	assert.False(t, r.Exists("/src/missing.py"))
}
