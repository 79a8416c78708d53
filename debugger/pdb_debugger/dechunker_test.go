package pdb_debugger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const prompt = "(Pdb) "

func TestDechunkerSplitPrompt(t *testing.T) {
	d := NewDechunker(prompt, unicode.UTF8)

	assert.Empty(t, d.Feed([]byte("ab")))
	assert.Equal(t, []string{"abc\n"}, d.Feed([]byte("c\n(Pdb) ")))
	assert.Empty(t, d.Pending())
}

func TestDechunkerPromptAcrossFeeds(t *testing.T) {
	d := NewDechunker(prompt, unicode.UTF8)

	assert.Empty(t, d.Feed([]byte("first\n(Pd")))
	assert.Equal(t, []string{"first\n", "second\n"}, d.Feed([]byte("b) second\n(Pdb) tail")))
	assert.Equal(t, "tail", string(d.Pending()))
	assert.Equal(t, "tail", d.Flush())
	assert.Empty(t, d.Pending())
}

func TestDechunkerFragmentationInvariance(t *testing.T) {
	stream := "> /a.py(1)<module>()\n-> x = 1\n(Pdb) __ENV__:{\"locals\":[]}\n(Pdb) (Pdb) Breakpoint 1 at /a.py:3\n(Pdb) héllo wörld\n(Pdb) partial"
	whole := NewDechunker(prompt, unicode.UTF8)
	want := whole.Feed([]byte(stream))
	wantPending := string(whole.Pending())

	data := []byte(stream)
	for size := 1; size <= 7; size++ {
		d := NewDechunker(prompt, unicode.UTF8)
		var got []string
		for i := 0; i < len(data); i += size {
			end := i + size
			if end > len(data) {
				end = len(data)
			}
			got = append(got, d.Feed(data[i:end])...)
		}
		assert.Equal(t, want, got, "feed size %d", size)
		assert.Equal(t, wantPending, string(d.Pending()), "feed size %d", size)
	}

	// chunk + prompt reconstructs the stream up to the partial
	assert.Equal(t, stream, strings.Join(want, prompt)+prompt+wantPending)
}

func TestDechunkerDecoding(t *testing.T) {
	d := NewDechunker(prompt, charmap.Windows1252)
	assert.Equal(t, []string{"café €"}, d.Feed([]byte{'c', 'a', 'f', 0xe9, ' ', 0x80, '(', 'P', 'd', 'b', ')', ' '}))

	d = NewDechunker(prompt, unicode.UTF8)
	chunks := d.Feed([]byte{'o', 'k', 0xff, '(', 'P', 'd', 'b', ')', ' '})
	assert.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0], "ok"))
	assert.NotContains(t, chunks[0], "\xff")
}
