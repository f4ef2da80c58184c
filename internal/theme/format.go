package theme

import "strings"

const (
	toolPlaceholder  = "{tool}"
	errorPlaceholder = "{error}"
)

// Format substitutes {tool} first, then {error}. A nil err leaves every
// {error} placeholder in place.
func Format(template, tool string, err error) string {
	out := strings.ReplaceAll(template, toolPlaceholder, tool)
	if err != nil {
		out = strings.ReplaceAll(out, errorPlaceholder, err.Error())
	}
	return out
}
