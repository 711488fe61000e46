package dsl

import "strings"

// attributeKeys are argument names that can never be a style name.
var attributeKeys = map[string]bool{
	"align": true, "indent": true, "overflow": true, "max-lines": true,
	"spacing": true, "italic": true, "size": true, "line-height": true,
	"color": true, "font": true, "width": true, "height": true,
	"fill": true, "stroke": true, "src": true, "image": true,
}

// Attributes splits command arguments into an optional leading style name
// and key/value pairs. A trailing key without value maps to "true", so
// `text Body italic { ... }` reads as italic=true.
func (c *Command) Attributes(allowStyle bool) (string, map[string]string) {
	result := map[string]string{}
	if c == nil || len(c.Args) == 0 {
		return "", result
	}
	args := c.Args
	var style string
	if allowStyle && args[0].Type == "Ident" && !attributeKeys[args[0].Value] {
		style = args[0].Value
		args = args[1:]
	}
	for i := 0; i < len(args); i += 2 {
		key := args[i].Value
		if i+1 >= len(args) {
			result[key] = "true"
			break
		}
		result[key] = args[i+1].Value
	}
	return style, result
}

// Words returns the raw values of every argument.
func (c *Command) Words() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		out = append(out, a.Value)
	}
	return out
}

// Commands returns the commands of a block in order, skipping other statements.
func (b *Block) Commands() []*Command {
	if b == nil {
		return nil
	}
	var out []*Command
	for _, st := range b.Statements {
		if st.Command != nil {
			out = append(out, st.Command)
		}
	}
	return out
}

// Text concatenates the string literals of a block. Consecutive literals
// are joined without a separator; authors write "\n" for hard breaks.
func (b *Block) Text() string {
	if b == nil {
		return ""
	}
	var builder strings.Builder
	for _, st := range b.Statements {
		if st.Text != nil {
			builder.WriteString(string(st.Text.Value))
		}
	}
	return builder.String()
}

// Text renders a property value as plain text; arrays are not flattened.
func (v *Value) Text() string {
	if v == nil {
		return ""
	}
	switch {
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Expr != nil:
		var builder strings.Builder
		for _, part := range v.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	default:
		return ""
	}
}

// Strings flattens an array value, or wraps a scalar into a single item.
func (v *Value) Strings() []string {
	if v == nil {
		return nil
	}
	if v.Array != nil {
		out := make([]string, 0, len(v.Array.Values))
		for _, item := range v.Array.Values {
			if s := item.Text(); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := v.Text(); s != "" {
		return []string{s}
	}
	return nil
}
