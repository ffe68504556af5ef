package object

// FromJSON converts a Go value produced by encoding/json.Unmarshal
// (into an any) into a Value, the same map/vector/scalar shape a
// program's data/* and memory/* bindings already use. Numbers land as
// Int when they carry no fractional part, Float otherwise.
func FromJSON(v any) Value {
	switch t := v.(type) {
	case nil:
		return Nil{}
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t))
		}
		return Float(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromJSON(item)
		}
		return NewVector(items...)
	case map[string]any:
		m := EmptyMap()
		for k, val := range t {
			m = m.Assoc(String(k), FromJSON(val))
		}
		return m
	default:
		return Nil{}
	}
}

// ToJSON converts a Value back into a plain Go value suitable for
// encoding/json.Marshal.
func ToJSON(v Value) any {
	switch t := v.(type) {
	case Nil:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case String:
		return string(t)
	case Keyword:
		return t.String()
	case *Vector:
		out := make([]any, len(t.Items))
		for i, item := range t.Items {
			out[i] = ToJSON(item)
		}
		return out
	case *Map:
		out := make(map[string]any)
		t.Range(func(k, val Value) bool {
			out[k.String()] = ToJSON(val)
			return true
		})
		return out
	default:
		return v.String()
	}
}
