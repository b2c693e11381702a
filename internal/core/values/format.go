package values

import (
	"fmt"
	"math"
	"strings"
)

// Interface converts v to plain Go data suitable for encoding/json.
// Entity references become their UUID text form. NaN and infinities, which
// JSON cannot represent, become the strings "NaN", "+Inf" and "-Inf".
func Interface(v Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Empty:
		return struct{}{}
	case Bool:
		return bool(x)
	case I32:
		return int32(x)
	case U32:
		return uint32(x)
	case U64:
		return uint64(x)
	case F32:
		return jsonFloat(float64(x), float32(x))
	case F64:
		return jsonFloat(float64(x), float64(x))
	case String:
		return string(x)
	case EntityRef:
		return x.Entity().String()
	case Vec2:
		return jsonFloats(x[:], [2]float32(x))
	case Vec3:
		return jsonFloats(x[:], [3]float32(x))
	case Vec4:
		return jsonFloats(x[:], [4]float32(x))
	case Quat:
		return jsonFloats(x[:], [4]float32(x))
	case Mat4:
		for _, col := range x {
			if !finite(col[:]) {
				out := make([]any, len(x))
				for i, c := range x {
					out[i] = jsonFloats(c[:], [4]float32(c))
				}
				return out
			}
		}
		return [4][4]float32(x)
	case ObjectRef:
		return map[string]string{"id": x.ID}
	case ListValue:
		out := make([]any, x.Len())
		for i := range out {
			out[i] = Interface(x.At(i))
		}
		return out
	case OptionValue:
		item, ok := x.Get()
		if !ok {
			return nil
		}
		return Interface(item)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func jsonFloat(f float64, keep any) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return keep
}

func finite(xs []float32) bool {
	for _, f := range xs {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

// jsonFloats returns keep when every component is finite, otherwise a slice
// with the non-finite components spelled out.
func jsonFloats(xs []float32, keep any) any {
	if finite(xs) {
		return keep
	}
	out := make([]any, len(xs))
	for i, f := range xs {
		out[i] = jsonFloat(float64(f), f)
	}
	return out
}

// Format renders v as "type(payload)" for logs. List and option elements
// are rendered as payloads only, e.g. list<string>("a", "b").
func Format(v Value) string {
	if v == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(v.Type().String())
	b.WriteByte('(')
	switch x := v.(type) {
	case ListValue:
		for i := 0; i < x.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			writePayload(&b, x.At(i))
		}
	case OptionValue:
		if item, ok := x.Get(); ok {
			writePayload(&b, item)
		} else {
			b.WriteString("none")
		}
	default:
		writePayload(&b, v)
	}
	b.WriteByte(')')
	return b.String()
}

func writePayload(b *strings.Builder, v Value) {
	switch x := v.(type) {
	case Empty:
	case EntityRef:
		b.WriteString(x.Entity().String())
	case String:
		fmt.Fprintf(b, "%q", string(x))
	case ObjectRef:
		fmt.Fprintf(b, "%q", x.ID)
	default:
		fmt.Fprintf(b, "%v", x)
	}
}
