package pdb_debugger

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fansqz/pdb-debugger/config"
	"github.com/fansqz/pdb-debugger/constants"
	. "github.com/fansqz/pdb-debugger/debugger"
)

// VariableTreeBuilder 将dump出来的 [type, value] 树转换为变量树
type VariableTreeBuilder struct {
	protocol *config.Protocol
}

func NewVariableTreeBuilder(protocol *config.Protocol) *VariableTreeBuilder {
	return &VariableTreeBuilder{protocol: protocol}
}

// BuildScope builds a scope from its [label, {name: [type, value]}] pair.
func (b *VariableTreeBuilder) BuildScope(name constants.ScopeName, raw gjson.Result) *Scope {
	scope := &Scope{
		Name:      name,
		Label:     raw.Get("0").String(),
		Variables: []*Variable{},
	}
	raw.Get("1").ForEach(func(key, pair gjson.Result) bool {
		typeTag, value := splitPair(pair)
		scope.Variables = append(scope.Variables, b.Build(key.String(), typeTag, value, key.String()))
		return true
	})
	return scope
}

// Build converts one dumped value. expression is the assignable path of the
// value in the current frame; children extend it.
func (b *VariableTreeBuilder) Build(name, typeTag string, value gjson.Result, expression string) *Variable {
	v := &Variable{Name: name, Type: typeTag, Expression: expression}
	if b.protocol.IsRecursion(typeTag) {
		v.Kind = RecursionKind
		v.Value = displayText(typeTag, value)
		return v
	}
	switch {
	case value.IsObject() && typeTag == config.MappingTag:
		v.Kind = MappingKind
		value.ForEach(func(key, pair gjson.Result) bool {
			childType, childValue := splitPair(pair)
			expr := expression + "['" + strings.ReplaceAll(key.String(), "'", `\'`) + "']"
			v.Children = append(v.Children, b.Build(key.String(), childType, childValue, expr))
			return true
		})
	case value.IsArray():
		v.Kind = SequenceKind
		for i, pair := range value.Array() {
			childType, childValue := splitPair(pair)
			index := "[" + strconv.Itoa(i) + "]"
			v.Children = append(v.Children, b.Build(index, childType, childValue, expression+index))
		}
	case value.IsObject():
		v.Kind = FieldObjectKind
		value.ForEach(func(key, pair gjson.Result) bool {
			childType, childValue := splitPair(pair)
			v.Children = append(v.Children, b.Build(key.String(), childType, childValue, expression+"."+key.String()))
			return true
		})
	default:
		v.Kind = ScalarKind
		v.Value = displayText(typeTag, value)
	}
	return v
}

// splitPair reads a [type, value] pair; anything else is an untyped value.
func splitPair(pair gjson.Result) (string, gjson.Result) {
	if !pair.IsArray() {
		return "", pair
	}
	items := pair.Array()
	if len(items) != 2 {
		return "", pair
	}
	return items[0].String(), items[1]
}

func displayText(typeTag string, value gjson.Result) *string {
	text := value.Raw
	if value.Type == gjson.String {
		text = value.String()
	}
	if typeTag == config.StringTag {
		text = "'" + strings.ReplaceAll(text, "'", `\'`) + "'"
	}
	return &text
}
