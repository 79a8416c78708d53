// Package source reads lines of the debugged program's source files.
package source

import (
	"strings"

	"github.com/spf13/afero"
)

// Reader 按行读取源文件，每次读取都是最新内容
type Reader struct {
	fs afero.Fs
}

// NewReader reads from fs; nil means the OS filesystem.
func NewReader(fs afero.Fs) *Reader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Reader{fs: fs}
}

// Line returns the text of the 0-based line of file without its line ending.
// Unreadable files and out-of-range lines yield "".
func (r *Reader) Line(file string, line int) string {
	if line < 0 {
		return ""
	}
	data, err := afero.ReadFile(r.fs, file)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	if line >= len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[line], "\r")
}

// Exists reports whether file can be read.
func (r *Reader) Exists(file string) bool {
	ok, err := afero.Exists(r.fs, file)
	return err == nil && ok
}
