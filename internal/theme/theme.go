// Package theme defines the named bundles of tool identities and message
// templates that label the MCP server, and resolves the active one.
//
// A Theme is selected wholesale and never merged with another. Once resolved
// it is treated as immutable for the lifetime of the process and is passed
// explicitly to every component that needs it.
package theme

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of capability roles a theme labels.
type Role int

const (
	// RoleLeader is the interaction tool. It is always advertised and can
	// never be disabled.
	RoleLeader Role = iota
	// RoleMemory is the project memory tool.
	RoleMemory
	// RoleSearch is the code search tool.
	RoleSearch
)

// Roles lists every role in listing order.
var Roles = [...]Role{RoleLeader, RoleMemory, RoleSearch}

// String returns the role name used in logs and management output.
func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "interaction"
	case RoleMemory:
		return "memory"
	case RoleSearch:
		return "search"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ToolIdentity is the protocol-visible identity of one role within a theme.
type ToolIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IconBg      string `json:"icon_bg"`
}

// DarkIconBg derives the dark-mode background class from IconBg, for
// example "bg-blue-100 dark:bg-blue-900" yields "dark:bg-blue-800".
func (t ToolIdentity) DarkIconBg() string {
	for _, class := range strings.Fields(t.IconBg) {
		if !strings.HasPrefix(class, "bg-") {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(class, "bg-"), "-")
		if len(parts) >= 2 {
			return "dark:bg-" + strings.Join(parts[:len(parts)-1], "-") + "-800"
		}
	}
	return ""
}

// Messages holds the user-facing templates. Templates may contain the
// {tool} and {error} placeholders, see Format.
type Messages struct {
	ServerName          string `json:"server_name"`
	ServerIntro         string `json:"server_intro"`
	ContinuePrompt      string `json:"continue_prompt"`
	ToolDisabled        string `json:"tool_disabled_msg"`
	LeaderCannotDisable string `json:"leader_cannot_disable_msg"`
	ParamParseError     string `json:"param_parse_error_msg"`
	UnknownTool         string `json:"unknown_tool_msg"`
}

// Theme is a complete, immutable set of tool identities and messages.
type Theme struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	ToolInteraction ToolIdentity `json:"tool_interaction"`
	ToolMemory      ToolIdentity `json:"tool_memory"`
	ToolSearch      ToolIdentity `json:"tool_search"`
	Messages        Messages     `json:"messages"`
}

// ErrInvalidTheme is returned by Validate for structurally broken themes.
var ErrInvalidTheme = errors.New("invalid theme")

// Identity returns the identity bound to role.
func (t *Theme) Identity(role Role) ToolIdentity {
	switch role {
	case RoleMemory:
		return t.ToolMemory
	case RoleSearch:
		return t.ToolSearch
	default:
		return t.ToolInteraction
	}
}

// Leader returns the interaction identity.
func (t *Theme) Leader() ToolIdentity {
	return t.ToolInteraction
}

// RoleOf maps a protocol tool id to its role. Ids outside this theme,
// including ids left over from a previously active theme, report false.
func (t *Theme) RoleOf(id string) (Role, bool) {
	for _, role := range Roles {
		if t.Identity(role).ID == id {
			return role, true
		}
	}
	return 0, false
}

// IDs returns the three tool ids in role order.
func (t *Theme) IDs() []string {
	ids := make([]string, 0, len(Roles))
	for _, role := range Roles {
		ids = append(ids, t.Identity(role).ID)
	}
	return ids
}

// Validate checks that every role has a distinct, non-empty id, a display
// name and a description, and that every template rendered into a protocol
// response is present. continue_prompt is optional.
func (t *Theme) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil theme", ErrInvalidTheme)
	}
	seen := make(map[string]Role, len(Roles))
	for _, role := range Roles {
		ident := t.Identity(role)
		id := strings.TrimSpace(ident.ID)
		if id == "" {
			return fmt.Errorf("%w: %s tool has no id", ErrInvalidTheme, role)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("%w: id %q used by both %s and %s", ErrInvalidTheme, id, prev, role)
		}
		seen[id] = role
		if strings.TrimSpace(ident.DisplayName) == "" {
			return fmt.Errorf("%w: %s tool has no display_name", ErrInvalidTheme, role)
		}
		if strings.TrimSpace(ident.Description) == "" {
			return fmt.Errorf("%w: %s tool has no description", ErrInvalidTheme, role)
		}
	}

	for _, m := range []struct{ key, value string }{
		{"server_name", t.Messages.ServerName},
		{"server_intro", t.Messages.ServerIntro},
		{"tool_disabled_msg", t.Messages.ToolDisabled},
		{"leader_cannot_disable_msg", t.Messages.LeaderCannotDisable},
		{"param_parse_error_msg", t.Messages.ParamParseError},
		{"unknown_tool_msg", t.Messages.UnknownTool},
	} {
		if strings.TrimSpace(m.value) == "" {
			return fmt.Errorf("%w: messages.%s is empty", ErrInvalidTheme, m.key)
		}
	}
	return nil
}

// UnknownToolMessage renders unknown_tool_msg for the raw requested name.
func (t *Theme) UnknownToolMessage(name string) string {
	return Format(t.Messages.UnknownTool, name, nil)
}

// ToolDisabledMessage renders tool_disabled_msg for role.
func (t *Theme) ToolDisabledMessage(role Role) string {
	return Format(t.Messages.ToolDisabled, t.Identity(role).DisplayName, nil)
}

// LeaderCannotDisableMessage renders leader_cannot_disable_msg.
func (t *Theme) LeaderCannotDisableMessage() string {
	return Format(t.Messages.LeaderCannotDisable, t.Leader().DisplayName, nil)
}

// ParamParseErrorMessage renders param_parse_error_msg for role with the
// decode diagnostic interpolated.
func (t *Theme) ParamParseErrorMessage(role Role, cause error) string {
	return Format(t.Messages.ParamParseError, t.Identity(role).DisplayName, cause)
}
