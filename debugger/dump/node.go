// Package dump encodes Go values into the variable dump wire format read by
// the session: every value is a [type, value] pair where value is a display
// string, an ordered object of pairs or an array of pairs.
package dump

import (
	"bytes"
	"encoding/json"
)

// Kind is the closed set of shapes a value is encoded as.
type Kind int

const (
	Scalar Kind = iota
	Mapping
	Sequence
	FieldObject
	// Opaque values have no recognized shape and encode their display string.
	Opaque
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Mapping:
		return "mapping"
	case Sequence:
		return "sequence"
	case FieldObject:
		return "fieldObject"
	default:
		return "opaque"
	}
}

// Field is one named child of a Mapping or FieldObject node.
type Field struct {
	Name string
	Node Node
}

// Node 编码后的值
type Node struct {
	Type string
	Kind Kind
	// Text is the display string of Scalar and Opaque nodes.
	Text   string
	Fields []Field
	Items  []Node
}

// MarshalJSON writes the [type, value] pair, keeping field order.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n Node) write(buf *bytes.Buffer) error {
	buf.WriteByte('[')
	if err := writeString(buf, n.Type); err != nil {
		return err
	}
	buf.WriteByte(',')
	switch n.Kind {
	case Mapping, FieldObject:
		if err := writeFields(buf, n.Fields); err != nil {
			return err
		}
	case Sequence:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		if err := writeString(buf, n.Text); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeFields(buf *bytes.Buffer, fields []Field) error {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, f.Name); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := f.Node.write(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates the value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}
