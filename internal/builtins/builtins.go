// Package builtins enumerates the runtime commands a BASIC program can call.
// Command names are matched case-insensitively and are not keywords; a call
// whose callee is in this table targets the runtime object instead of a user
// function.
package builtins

import (
	"fmt"
	"sort"
	"strings"
)

// Command describes one runtime command.
type Command struct {
	Name    string // upper-case source name, e.g. "GRAPHICS"
	Member  string // runtime member called by generated code, e.g. "Graphics"
	MinArgs int
	MaxArgs int
	Returns bool // usable as a value (MilliSecs, Rnd, ...)
}

// Arity renders the accepted argument count, e.g. "2" or "4-5".
func (c Command) Arity() string {
	if c.MinArgs == c.MaxArgs {
		return fmt.Sprintf("%d", c.MinArgs)
	}
	return fmt.Sprintf("%d-%d", c.MinArgs, c.MaxArgs)
}

// Accepts reports whether n arguments are valid for the command.
func (c Command) Accepts(n int) bool {
	return n >= c.MinArgs && n <= c.MaxArgs
}

var table = map[string]Command{}

func register(name, member string, minArgs, maxArgs int, returns bool) {
	table[name] = Command{Name: name, Member: member, MinArgs: minArgs, MaxArgs: maxArgs, Returns: returns}
}

func init() {
	register("GRAPHICS", "Graphics", 2, 4, false)
	register("CLS", "Cls", 0, 0, false)
	register("COLOR", "Color", 3, 3, false)
	register("PLOT", "Plot", 2, 2, false)
	register("LINE", "Line", 4, 4, false)
	register("RECT", "Rect", 4, 5, false)
	register("OVAL", "Oval", 4, 5, false)
	register("TEXT", "Text", 3, 3, false)
	register("FLIP", "Flip", 0, 1, false)
	register("MILLISECS", "MilliSecs", 0, 0, true)
	register("KEYDOWN", "KeyDown", 1, 1, true)
	register("MOUSEX", "MouseX", 0, 0, true)
	register("MOUSEY", "MouseY", 0, 0, true)
	register("RND", "Rnd", 1, 2, true)
	register("SEEDRND", "SeedRnd", 1, 1, false)
}

// Lookup finds a command by source name in any case.
func Lookup(name string) (Command, bool) {
	cmd, ok := table[strings.ToUpper(name)]
	return cmd, ok
}

// All returns every command sorted by name.
func All() []Command {
	cmds := make([]Command, 0, len(table))
	for _, c := range table {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}
