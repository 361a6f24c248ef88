package judge

import (
	"strings"
	"text/template"
	"unicode/utf8"
)

// TemplateFuncMap returns the functions available to judge prompt
// templates. The map is rebuilt on every call so callers may extend it.
//
// Usage:
//
//	tmpl, err := template.New("prompt").Funcs(TemplateFuncMap()).Parse(text)
func TemplateFuncMap() template.FuncMap {
	return template.FuncMap{
		// add performs integer addition.
		// Template usage: {{add $i 1}}
		"add": func(a, b int) int {
			return a + b
		},

		// truncate limits s to length bytes without splitting a rune,
		// ending with "..." when it cuts. Non-positive lengths yield "".
		// Template usage: {{truncate .TextA 4000}}
		"truncate": truncate,

		// lower returns s with all Unicode letters mapped to lowercase.
		"lower": strings.ToLower,

		// upper returns s with all Unicode letters mapped to uppercase.
		"upper": strings.ToUpper,

		// trim removes leading and trailing whitespace.
		// Template usage: {{trim .TextB}}
		"trim": strings.TrimSpace,

		// replace returns s with all instances of old replaced by new.
		// Template usage: {{replace .TextA "```" "'''"}}
		"replace": func(s, old, new string) string {
			return strings.ReplaceAll(s, old, new)
		},

		// join concatenates elems with sep between them.
		// Template usage: {{join .Dimensions ", "}}
		"join": func(elems []string, sep string) string {
			return strings.Join(elems, sep)
		},
	}
}

func truncate(s string, length int) string {
	if length <= 0 {
		return ""
	}
	if len(s) <= length {
		return s
	}

	suffix := ""
	if length > 3 {
		suffix = "..."
		length -= 3
	}
	cut := length
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}
