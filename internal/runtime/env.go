package runtime

// Environment is a frame of named values with a parent chain. Variables
// live in frames keyed by mangled name: the global frame has no parent and
// every other frame inherits from it. User functions live in a separate
// chain of function scopes built the same way.
type Environment struct {
	values map[string]Value
	parent *Environment
}

// NewEnvironment creates a new environment with an optional parent.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		values: make(map[string]Value),
		parent: parent,
	}
}

// Define binds name in this environment, replacing any previous binding.
func (e *Environment) Define(name string, value Value) {
	e.values[name] = value
}

// Get looks up name by walking the parent chain.
func (e *Environment) Get(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if val, exists := env.values[name]; exists {
			return val, true
		}
	}
	return nil, false
}

// Owns reports whether name is bound in this environment itself.
func (e *Environment) Owns(name string) bool {
	_, exists := e.values[name]
	return exists
}

// Root returns the outermost environment.
func (e *Environment) Root() *Environment {
	env := e
	for env.parent != nil {
		env = env.parent
	}
	return env
}

// Assign stores value under name: in this environment if it already owns
// the name, in the root if the root has it, and otherwise as a new binding
// here.
func (e *Environment) Assign(name string, value Value) {
	if !e.Owns(name) {
		if root := e.Root(); root != e && root.Owns(name) {
			root.values[name] = value
			return
		}
	}
	e.values[name] = value
}

// Names returns the names bound in this environment itself.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	return names
}
