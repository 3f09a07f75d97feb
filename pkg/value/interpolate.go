package value

import "strings"

// Interpolate substitutes "${name}" occurrences in text values against
// vars, recursing into object/array values. A single pass only: if the
// referenced variable is absent, the literal "${name}" is left in place and
// substitution does not retry, so applying Interpolate twice on the same
// tree is idempotent.
func Interpolate(v Value, vars *Map) Value {
	switch v.kind {
	case KindText:
		return Text(interpolateText(v.text, vars))
	case KindObject:
		out := NewMap()
		for _, k := range v.obj.Keys() {
			child, _ := v.obj.Get(k)
			out.Set(k, Interpolate(child, vars))
		}
		return Object(out)
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = Interpolate(e, vars)
		}
		return Array(out)
	default:
		return v
	}
}

func interpolateText(s string, vars *Map) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				break
			}
			name := s[i+2 : i+2+end]
			if val, ok := vars.Get(name); ok {
				rendered, err := val.TryString()
				if err == nil {
					b.WriteString(rendered)
					i += 2 + end + 1
					continue
				}
			}
			// variable absent or not stringable: leave the literal in place
			b.WriteString(s[i : i+2+end+1])
			i += 2 + end + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
