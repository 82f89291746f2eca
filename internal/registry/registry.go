// Package registry holds the closed, compile-time table of bridge commands.
//
// The table is static by design: it is authority-sensitive, so it is modeled
// as a tagged map keyed by command name rather than anything a caller could
// mutate at runtime. There is no registration API.
package registry

import "sort"

// Tier is the capability tier a command requires.
type Tier int

const (
	Observe Tier = iota
	Input
	Control
	Danger
)

func (t Tier) String() string {
	switch t {
	case Observe:
		return "observe"
	case Input:
		return "input"
	case Control:
		return "control"
	case Danger:
		return "danger"
	default:
		return "unknown"
	}
}

// ParseTier clamps an arbitrary integer into the valid [Observe, Danger] range.
func ParseTier(n int) Tier {
	switch {
	case n < int(Observe):
		return Observe
	case n > int(Danger):
		return Danger
	default:
		return Tier(n)
	}
}

// Command is an immutable record describing one command's authority.
type Command struct {
	Tier        Tier
	TokenExempt bool
	Async       bool
}

// commands is the closed vocabulary. Nothing outside this file adds to it.
var commands = map[string]Command{
	"ping":             {Tier: Observe, TokenExempt: true},
	"auth_info":        {Tier: Observe, TokenExempt: true},
	"capabilities":     {Tier: Observe},
	"screenshot":       {Tier: Observe},
	"scene_tree":       {Tier: Observe},
	"get_property":     {Tier: Observe},
	"runtime_info":     {Tier: Observe},
	"get_errors":       {Tier: Observe},
	"wait_for":         {Tier: Observe, Async: true},
	"find_nodes":       {Tier: Observe},
	"audio_state":      {Tier: Observe},
	"network_state":    {Tier: Observe},
	"grb_performance":  {Tier: Observe},
	"click":            {Tier: Input},
	"key":              {Tier: Input},
	"press_button":     {Tier: Input},
	"drag":             {Tier: Input},
	"scroll":           {Tier: Input},
	"gesture":          {Tier: Input},
	"gamepad":          {Tier: Input},
	"set_property":     {Tier: Control},
	"call_method":      {Tier: Control},
	"quit":             {Tier: Control},
	"run_custom_command": {Tier: Control},
	"eval":             {Tier: Danger},
}

// Lookup returns the record for name and whether it is known.
func Lookup(name string) (Command, bool) {
	c, ok := commands[name]
	return c, ok
}

// IsKnown reports whether name is in the closed vocabulary.
func IsKnown(name string) bool {
	_, ok := commands[name]
	return ok
}

// IsTokenExempt reports whether name may be invoked without a matching token.
// Unknown names are never exempt.
func IsTokenExempt(name string) bool {
	c, ok := commands[name]
	return ok && c.TokenExempt
}

// IsAsync reports whether name is resolved asynchronously (currently only wait_for).
func IsAsync(name string) bool {
	c, ok := commands[name]
	return ok && c.Async
}

// CommandsForTier returns the sorted list of command names whose tier is at
// or below maxTier.
func CommandsForTier(maxTier Tier) []string {
	names := make([]string, 0, len(commands))
	for name, c := range commands {
		if c.Tier <= maxTier {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
