package theme

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultName is the built-in theme used when nothing else resolves.
const DefaultName = "transformers"

//go:embed builtin/*.json
var builtinFS embed.FS

// Choice describes a selectable built-in theme.
type Choice struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

var choices = []Choice{
	{Name: "transformers", Label: "变形金刚 - 赛博坦军团"},
	{Name: "classic", Label: "经典 - 原版寸止风格"},
	{Name: "one_piece", Label: "海贼王 - 草帽海贼团"},
	{Name: "naruto", Label: "火影忍者 - 木叶忍者"},
}

var loadBuiltins = sync.OnceValues(func() (map[string]Theme, error) {
	out := make(map[string]Theme, len(choices))
	for _, c := range choices {
		data, err := builtinFS.ReadFile("builtin/" + c.Name + ".json")
		if err != nil {
			return nil, fmt.Errorf("read built-in theme %s: %w", c.Name, err)
		}
		var t Theme
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse built-in theme %s: %w", c.Name, err)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("built-in theme %s: %w", c.Name, err)
		}
		out[c.Name] = t
	}
	return out, nil
})

// Available lists the built-in themes in display order.
func Available() []Choice {
	out := make([]Choice, len(choices))
	copy(out, choices)
	return out
}

// Builtin returns a copy of the named built-in theme.
func Builtin(name string) (*Theme, bool) {
	all, err := loadBuiltins()
	if err != nil {
		// Embedded data is fixed at build time; a failure here is a packaging bug.
		panic(err)
	}
	t, ok := all[name]
	if !ok {
		return nil, false
	}
	return &t, true
}

// Default returns a copy of the default built-in theme.
func Default() *Theme {
	t, _ := Builtin(DefaultName)
	return t
}
