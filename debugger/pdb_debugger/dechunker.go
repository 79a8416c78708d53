package pdb_debugger

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
)

// Dechunker 将子进程的原始输出按提示符切分为完整的响应单元
// 提示符可能被拆分在两次输出中，未完成的部分保存在pending中
type Dechunker struct {
	prompt  []byte
	enc     encoding.Encoding
	pending []byte
}

// NewDechunker splits on prompt, encoded with enc, and decodes chunks with enc.
func NewDechunker(prompt string, enc encoding.Encoding) *Dechunker {
	encoded, err := enc.NewEncoder().Bytes([]byte(prompt))
	if err != nil {
		encoded = []byte(prompt)
	}
	return &Dechunker{prompt: encoded, enc: enc}
}

// Feed consumes data and returns the chunks completed by it, in order.
func (d *Dechunker) Feed(data []byte) []string {
	d.pending = append(d.pending, data...)
	var chunks []string
	for {
		i := bytes.Index(d.pending, d.prompt)
		if i < 0 {
			break
		}
		chunks = append(chunks, d.decode(d.pending[:i]))
		d.pending = d.pending[i+len(d.prompt):]
	}
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return chunks
}

// Pending returns the bytes not yet terminated by a prompt.
func (d *Dechunker) Pending() []byte {
	return d.pending
}

// Flush returns the decoded partial and forgets it.
func (d *Dechunker) Flush() string {
	text := d.decode(d.pending)
	d.Reset()
	return text
}

func (d *Dechunker) Reset() {
	d.pending = nil
}

func (d *Dechunker) decode(raw []byte) string {
	out, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(out)
}
