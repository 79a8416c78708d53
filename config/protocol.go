package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/emirpasic/gods/sets"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/fansqz/pdb-debugger/utils"
)

const (
	// SyntheticMarker starts the file name of frames that have no source file,
	// e.g. "<frozen importlib._bootstrap>" or "<string>".
	SyntheticMarker = "<"
	// StackPrefix starts the first line of a `where` dump.
	StackPrefix = "  "
	// SourceEchoPrefix starts the source line echoed under each frame.
	SourceEchoPrefix = "-> "
	// ClearAllPrompt is the confirmation printed by `cl` without arguments.
	ClearAllPrompt = "Clear all breaks? "
	// RecursionSuffix marks a value truncated by cycle detection.
	RecursionSuffix = " <recursion>"
	// MappingTag is the wire type tag of mapping values.
	MappingTag = "dict"
	// StringTag is the wire type tag of string values.
	StringTag = "str"
)

// Protocol 一次调试会话使用的不可变协议配置，创建后只读
type Protocol struct {
	Prompt        string
	EnvMarker     string
	EOL           string
	CommentMarker string
	Encoding      encoding.Encoding
	internalFiles sets.Set

	ActiveLine        *regexp.Regexp
	BreakpointAdded   *regexp.Regexp
	BreakpointDeleted *regexp.Regexp
	StackFrame        *regexp.Regexp
}

// NewProtocol compiles the protocol description for cfg.
func NewProtocol(cfg *Config) (*Protocol, error) {
	name := cfg.Protocol.Encoding
	if name == "" {
		name = PlatformEncoding()
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	eol := "\n"
	if runtime.GOOS == "windows" {
		eol = "\r\n"
	}
	return &Protocol{
		Prompt:            cfg.Protocol.Prompt,
		EnvMarker:         cfg.Protocol.EnvMarker,
		EOL:               eol,
		CommentMarker:     cfg.Protocol.CommentMarker,
		Encoding:          enc,
		internalFiles:     utils.List2set(cfg.Protocol.InternalFiles),
		ActiveLine:        regexp.MustCompile(`^> (.*)\(([0-9]+)\)`),
		BreakpointAdded:   regexp.MustCompile(`^Breakpoint ([0-9]+) at (.*):([0-9]+)`),
		BreakpointDeleted: regexp.MustCompile(`^Deleted breakpoint ([0-9]+) at (.*):([0-9]+)`),
		StackFrame:        regexp.MustCompile(`^[ >] (.*)\(([0-9]+)\)([^(]+)\(\)`),
	}, nil
}

// DefaultProtocol returns the protocol for Default().
func DefaultProtocol() *Protocol {
	p, err := NewProtocol(Default())
	if err != nil {
		panic(err)
	}
	return p
}

// IsSynthetic reports whether file names a frame without a real source file.
func (p *Protocol) IsSynthetic(file string) bool {
	return strings.HasPrefix(file, SyntheticMarker)
}

// IsInternal reports whether file belongs to the debugger implementation.
func (p *Protocol) IsInternal(file string) bool {
	return p.internalFiles.Contains(filepath.Base(file))
}

// IsRecursion reports whether a type tag carries the recursion marker.
func (p *Protocol) IsRecursion(typeTag string) bool {
	return strings.HasSuffix(typeTag, RecursionSuffix)
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc, nil
}
