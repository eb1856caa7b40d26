package protocol

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const binaryDataType = "BinaryData"

// Binary is a byte payload that survives a JSON round trip.
// It is encoded as {"type":"BinaryData","data":[...byte values]}.
type Binary []byte

type binaryJSON struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// MarshalJSON implements json.Marshaler
func (b Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(binaryJSON{
		Type: binaryDataType,
		Data: lo.Map(b, func(v byte, _ int) int { return int(v) }),
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (b *Binary) UnmarshalJSON(data []byte) error {
	var raw binaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if raw.Type != binaryDataType {
		return fmt.Errorf("%w: expected %s, got %q", ErrInvalidPayload, binaryDataType, raw.Type)
	}
	out := make([]byte, len(raw.Data))
	for i, v := range raw.Data {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: byte value %d out of range", ErrInvalidPayload, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Marshal encodes an outbound message as JSON.
// Every []byte reachable from v (struct fields, pointers, maps, slices and
// interfaces) is rewritten as Binary first since encoding/json would emit
// base64. Values implementing json.Marshaler or encoding.TextMarshaler are
// encoded by their own methods.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(withBinary(v))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

var (
	marshalerType     = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

func withBinary(v any) any {
	return rewrite(reflect.ValueOf(v))
}

func rewrite(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if m, ok := selfEncoding(v); ok {
		return m
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return rewrite(v.Elem())
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return Binary(v.Bytes())
		}
		return rewriteList(v)
	case reflect.Array:
		return rewriteList(v)
	case reflect.Map:
		return rewriteMap(v)
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		collectFields(v, out, make(map[string]int), 0)
		return out
	default:
		return v.Interface()
	}
}

// selfEncoding returns v unchanged when encoding/json would call one of its
// marshal methods.
func selfEncoding(v reflect.Value) (any, bool) {
	t := v.Type()
	if t.Implements(marshalerType) || t.Implements(textMarshalerType) {
		return v.Interface(), true
	}
	if v.CanAddr() {
		pt := reflect.PointerTo(t)
		if pt.Implements(marshalerType) || pt.Implements(textMarshalerType) {
			return v.Addr().Interface(), true
		}
	}
	return nil, false
}

func rewriteList(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = rewrite(v.Index(i))
	}
	return out
}

func rewriteMap(v reflect.Value) any {
	if v.IsNil() {
		return nil
	}
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, ok := mapKey(iter.Key())
		if !ok {
			// let encoding/json report the unsupported key type
			return v.Interface()
		}
		out[key] = rewrite(iter.Value())
	}
	return out
}

// mapKey renders a map key the way encoding/json does.
func mapKey(k reflect.Value) (string, bool) {
	if k.Kind() == reflect.String {
		return k.String(), true
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", true
		}
		text, err := tm.MarshalText()
		return string(text), err == nil
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), true
	}
	return "", false
}

// collectFields adds the JSON fields of struct v to out, following the json
// tag rules. Fields of embedded structs are promoted unless a shallower field
// already uses the name. Unexported embedded structs are skipped.
func collectFields(v reflect.Value, out map[string]any, depths map[string]int, depth int) {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)

		if f.Anonymous && name == "" && f.IsExported() {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if fv.Kind() == reflect.Pointer {
					if fv.IsNil() {
						continue
					}
					fv = fv.Elem()
				}
				collectFields(fv, out, depths, depth+1)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if hasOption(opts, "omitempty") && isEmptyValue(fv) || hasOption(opts, "omitzero") && fv.IsZero() {
			continue
		}
		if d, ok := depths[name]; ok && d <= depth {
			continue
		}
		depths[name] = depth

		if hasOption(opts, "string") && isScalar(fv.Kind()) {
			quoted, err := json.Marshal(fv.Interface())
			if err == nil {
				out[name] = string(quoted)
				continue
			}
		}
		out[name] = rewrite(fv)
	}
}

func hasOption(opts, name string) bool {
	return slices.Contains(strings.Split(opts, ","), name)
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
