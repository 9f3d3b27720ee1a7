package template

import (
	"fmt"
	"regexp"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)
	nameRe        = regexp.MustCompile(`^\w+$`)
)

// ValidName reports whether name can be referenced as {{name}}: letters,
// digits and underscores only.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// UnresolvedReferenceError reports a placeholder with no value in the store.
type UnresolvedReferenceError struct {
	Name string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference: %s", e.Name)
}

// Lookup is the read side of a Store.
type Lookup interface {
	Get(name string) (string, bool)
}

// Resolve substitutes every {{name}} in tmpl with its value from vars.
// Substituted text is not scanned again, so values that look like
// placeholders stay literal. The first missing name fails the whole template.
func Resolve(tmpl string, vars Lookup) (string, error) {
	for _, name := range References(tmpl) {
		if _, ok := vars.Get(name); !ok {
			return "", &UnresolvedReferenceError{Name: name}
		}
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		v, _ := vars.Get(name)
		return v
	}), nil
}

// References returns the distinct placeholder names in tmpl, in order of first appearance.
func References(tmpl string) []string {
	matches := placeholderRe.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Placeholder formats a variable name as a template reference.
func Placeholder(name string) string {
	return "{{" + name + "}}"
}
