package dump

import (
	"bytes"

	"github.com/tidwall/sjson"
)

// Var is one named value of a scope, in display order.
type Var struct {
	Name  string
	Value any
}

// Scope 一个作用域，编码为 [label, {name: [type, value]}]
type Scope struct {
	Label string
	Vars  []Var
}

// MarshalJSON keeps the variables in Vars order.
func (s Scope) MarshalJSON() ([]byte, error) {
	enc := NewEncoder()
	fields := make([]Field, 0, len(s.Vars))
	for _, v := range s.Vars {
		fields = append(fields, Field{Name: v.Name, Node: enc.Encode(v.Value)})
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	if err := writeString(&buf, s.Label); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeFields(&buf, fields); err != nil {
		return nil, err
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// EncodeEnv builds the dump payload {"locals": scope, "globals": scope}.
func EncodeEnv(locals, globals Scope) ([]byte, error) {
	env := []byte(`{}`)
	for _, s := range []struct {
		key   string
		scope Scope
	}{{"locals", locals}, {"globals", globals}} {
		raw, err := s.scope.MarshalJSON()
		if err != nil {
			return nil, err
		}
		if env, err = sjson.SetRawBytes(env, s.key, raw); err != nil {
			return nil, err
		}
	}
	return env, nil
}
