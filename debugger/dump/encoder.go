package dump

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/emirpasic/gods/containers"
	"github.com/emirpasic/gods/maps"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/sirupsen/logrus"
)

const (
	// MappingType tags mapping values so that readers can tell them from objects.
	MappingType = "dict"
	// StringType tags string values, which readers display quoted.
	StringType = "str"
	// RecursionSuffix marks a value that is already being expanded higher up.
	RecursionSuffix = " <recursion>"
)

// identity of a reference value, valid while its subtree is being encoded
type identity struct {
	typ reflect.Type
	ptr uintptr
}

// Encoder 将任意值编码为Node，遇到正在展开的引用时输出递归标记
// Encoder is not safe for concurrent use.
type Encoder struct {
	visited *hashset.Set
}

func NewEncoder() *Encoder {
	return &Encoder{visited: hashset.New()}
}

// Encode encodes v with a fresh encoder.
func Encode(v any) Node {
	return NewEncoder().Encode(v)
}

// Encode encodes v. It never fails: values that cannot be traversed degrade
// to Opaque nodes.
func (enc *Encoder) Encode(v any) Node {
	return enc.encode(reflect.ValueOf(v))
}

func (enc *Encoder) encode(rv reflect.Value) (n Node) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Debugf("[Encoder] encode %s fail, err = %v", typeName(rv), r)
			n = Node{Type: typeName(rv), Kind: Opaque, Text: "<" + typeName(rv) + ">"}
		}
	}()

	if !rv.IsValid() {
		return Node{Type: "nil", Kind: Scalar, Text: "nil"}
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Node{Type: "nil", Kind: Scalar, Text: "nil"}
		}
		return enc.encode(rv.Elem())
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Node{Type: typeName(rv), Kind: Scalar, Text: "nil"}
	}

	if rv.CanInterface() {
		switch v := rv.Interface().(type) {
		case maps.Map:
			return enc.enter(rv, func() Node { return enc.encodeGodsMap(rv, v) })
		case containers.Container:
			return enc.enter(rv, func() Node { return enc.encodeGodsContainer(rv, v) })
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Node{Type: typeName(rv), Kind: Scalar, Text: strconv.FormatBool(rv.Bool())}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Node{Type: typeName(rv), Kind: Scalar, Text: strconv.FormatInt(rv.Int(), 10)}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Node{Type: typeName(rv), Kind: Scalar, Text: strconv.FormatUint(rv.Uint(), 10)}
	case reflect.Float32, reflect.Float64:
		return Node{Type: typeName(rv), Kind: Scalar, Text: strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits())}
	case reflect.Complex64, reflect.Complex128:
		return Node{Type: typeName(rv), Kind: Scalar, Text: strconv.FormatComplex(rv.Complex(), 'g', -1, rv.Type().Bits())}
	case reflect.String:
		return Node{Type: StringType, Kind: Scalar, Text: rv.String()}
	case reflect.Pointer:
		if elem := rv.Elem(); elem.Kind() == reflect.Struct && !hasExportedFields(elem.Type()) {
			return opaque(rv)
		}
		return enc.enter(rv, func() Node { return enc.encode(rv.Elem()) })
	case reflect.Map:
		return enc.enter(rv, func() Node { return enc.encodeMap(rv) })
	case reflect.Slice:
		return enc.enter(rv, func() Node { return enc.encodeSequence(rv) })
	case reflect.Array:
		return enc.encodeSequence(rv)
	case reflect.Struct:
		return enc.encodeStruct(rv)
	default:
		return opaque(rv)
	}
}

// enter encodes a reference value once per path: a value already being
// expanded by an ancestor becomes a recursion leaf.
func (enc *Encoder) enter(rv reflect.Value, body func() Node) Node {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
	default:
		return body()
	}
	id := identity{typ: rv.Type(), ptr: rv.Pointer()}
	if id.ptr == 0 {
		return body()
	}
	if enc.visited.Contains(id) {
		target := rv
		if rv.Kind() == reflect.Pointer {
			target = rv.Elem()
		}
		return Node{
			Type: shapeType(target) + RecursionSuffix,
			Kind: Opaque,
			Text: fmt.Sprintf("<%s at %#x>", typeName(rv), id.ptr),
		}
	}
	enc.visited.Add(id)
	defer enc.visited.Remove(id)
	return body()
}

func (enc *Encoder) encodeMap(rv reflect.Value) Node {
	keys := rv.MapKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = keyString(k)
	}
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return names[order[a]] < names[order[b]] })

	fields := make([]Field, 0, len(keys))
	for _, i := range order {
		fields = append(fields, Field{Name: names[i], Node: enc.encode(rv.MapIndex(keys[i]))})
	}
	return Node{Type: MappingType, Kind: Mapping, Fields: fields}
}

func (enc *Encoder) encodeGodsMap(rv reflect.Value, m maps.Map) Node {
	fields := make([]Field, 0, m.Size())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		fields = append(fields, Field{Name: keyString(reflect.ValueOf(k)), Node: enc.encode(reflect.ValueOf(v))})
	}
	return Node{Type: MappingType, Kind: Mapping, Fields: fields}
}

func (enc *Encoder) encodeGodsContainer(rv reflect.Value, c containers.Container) Node {
	values := c.Values()
	items := make([]Node, 0, len(values))
	for _, v := range values {
		items = append(items, enc.encode(reflect.ValueOf(v)))
	}
	return Node{Type: typeName(rv), Kind: Sequence, Items: items}
}

func (enc *Encoder) encodeSequence(rv reflect.Value) Node {
	items := make([]Node, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items = append(items, enc.encode(rv.Index(i)))
	}
	return Node{Type: typeName(rv), Kind: Sequence, Items: items}
}

func (enc *Encoder) encodeStruct(rv reflect.Value) Node {
	t := rv.Type()
	if !hasExportedFields(t) {
		return opaque(rv)
	}
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		fields = append(fields, Field{Name: t.Field(i).Name, Node: enc.encode(rv.Field(i))})
	}
	return Node{Type: typeName(rv), Kind: FieldObject, Fields: fields}
}

func hasExportedFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

// opaque never formats containers generically, which could recurse forever.
func opaque(rv reflect.Value) Node {
	text := "<" + typeName(rv) + ">"
	if rv.CanInterface() {
		switch v := rv.Interface().(type) {
		case error:
			text = v.Error()
		case fmt.Stringer:
			text = v.String()
		}
	}
	return Node{Type: typeName(rv), Kind: Opaque, Text: text}
}

// shapeType is the type tag the value would have been encoded with.
func shapeType(rv reflect.Value) string {
	if rv.Kind() == reflect.Map {
		return MappingType
	}
	if rv.CanInterface() {
		if _, ok := rv.Interface().(maps.Map); ok {
			return MappingType
		}
	}
	return typeName(rv)
}

func keyString(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Interface:
		if k.IsNil() {
			return "nil"
		}
		return keyString(k.Elem())
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return "<" + typeName(k) + ">"
}

func typeName(rv reflect.Value) string {
	if !rv.IsValid() {
		return "nil"
	}
	return rv.Type().String()
}
