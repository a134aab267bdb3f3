package rewrite

import (
	"fmt"
	"strings"

	"github.com/armchr/junitmig/internal/pattern"
)

// UnboundPlaceholderError reports a required placeholder missing from the bindings.
type UnboundPlaceholderError struct {
	Name string
}

func (e *UnboundPlaceholderError) Error() string {
	return fmt.Sprintf("placeholder $%s is not bound", e.Name)
}

type segment struct {
	out      strings.Builder
	captures []Capture
	missing  bool
}

// Substitute renders a replacement template. Bound fragments are inserted byte for byte
// and their copy positions returned as captures.
func Substitute(template string, b pattern.Bindings) (string, []Capture, error) {
	stack := []*segment{{}}
	cur := stack[0]

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '\\' && i+1 < len(template):
			i++
			cur.out.WriteByte(template[i])
		case c == '[':
			seg := &segment{}
			stack = append(stack, seg)
			cur = seg
		case c == ']':
			if len(stack) == 1 {
				return "", nil, fmt.Errorf("unbalanced ']' in template %q", template)
			}
			done := cur
			stack = stack[:len(stack)-1]
			cur = stack[len(stack)-1]
			if done.missing {
				continue
			}
			base := cur.out.Len()
			cur.out.WriteString(done.out.String())
			for _, cp := range done.captures {
				cp.Offset += base
				cur.captures = append(cur.captures, cp)
			}
		case c == '$':
			j := i + 1
			for j < len(template) && isNameByte(template[j]) {
				j++
			}
			if j == i+1 {
				cur.out.WriteByte(c)
				continue
			}
			name := template[i+1 : j]
			i = j - 1
			binding, ok := b[name]
			if !ok {
				if len(stack) == 1 {
					return "", nil, &UnboundPlaceholderError{Name: name}
				}
				cur.missing = true
				continue
			}
			if binding.HasSpan {
				cur.captures = append(cur.captures, Capture{Name: name, Source: binding.Span, Offset: cur.out.Len()})
			}
			cur.out.WriteString(binding.Text)
		default:
			cur.out.WriteByte(c)
		}
	}
	if len(stack) != 1 {
		return "", nil, fmt.Errorf("unbalanced '[' in template %q", template)
	}
	return cur.out.String(), cur.captures, nil
}

func isNameByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// Placeholders lists the placeholder names referenced by a template.
func Placeholders(template string) []string {
	var names []string
	seen := map[string]bool{}
	for i := 0; i < len(template); i++ {
		if template[i] == '\\' {
			i++
			continue
		}
		if template[i] != '$' {
			continue
		}
		j := i + 1
		for j < len(template) && isNameByte(template[j]) {
			j++
		}
		if name := template[i+1 : j]; name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		i = j - 1
	}
	return names
}
