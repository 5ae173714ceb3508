package phoo

import "sync"

// NamespaceKind selects one of a scope's three namespaces.
type NamespaceKind uint8

// Namespace kinds.
const (
	WordsKind NamespaceKind = iota
	MacrosKind
	LiteralsKind
)

func (k NamespaceKind) String() string {
	switch k {
	case WordsKind:
		return "words"
	case MacrosKind:
		return "macros"
	case LiteralsKind:
		return "literals"
	}
	return "unknown"
}

// Scope bundles the three namespaces: words for run time, macros for
// compile time, and literal rules for turning unrecognized tokens into
// values.
type Scope struct {
	Words    *Namespace
	Macros   *Namespace
	Literals *LiteralRules
}

// NewScope returns a scope with empty namespaces.
func NewScope() *Scope {
	return &Scope{
		Words:    NewNamespace(),
		Macros:   NewNamespace(),
		Literals: NewLiteralRules(),
	}
}

// Namespace returns the words or macros namespace; literal rules are
// reached through Literals.
func (sc *Scope) Namespace(kind NamespaceKind) *Namespace {
	switch kind {
	case WordsKind:
		return sc.Words
	case MacrosKind:
		return sc.Macros
	case LiteralsKind:
		return &sc.Literals.Namespace
	}
	return nil
}

// CopyFrom imports the visible entries of every namespace in other.
func (sc *Scope) CopyFrom(other *Scope) {
	sc.Words.copyFrom(other.Words)
	sc.Macros.copyFrom(other.Macros)
	sc.Literals.copyFrom(other.Literals)
}

// Module is a named, persistent scope. Modules are created once per name by
// an Interp and shared by every thread that refers to them. Namespace access
// is not synchronized; threads defining into a shared module must serialize
// themselves.
type Module struct {
	*Scope
	name string

	mu      sync.Mutex
	subs    map[string]*Module
	imports map[string]*Module
	stars   []*Module
	loaded  bool
}

// NewModule returns an empty, unattached module.
func NewModule(name string) *Module {
	return &Module{Scope: NewScope(), name: name}
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

func (m *Module) String() string { return "<module " + m.name + ">" }

// Define adds def to the module's namespace of the given kind. In strict
// mode an already visible name is an AlreadyDefinedError; it must be
// forgotten first.
func (m *Module) Define(kind NamespaceKind, name string, def Definition, strict bool) error {
	ns := m.Namespace(kind)
	if ns == nil {
		return errorf(UnreachableError, "unknown namespace kind %v", kind)
	}
	if strict {
		if _, defined := ns.Find(name); defined {
			return errorf(AlreadyDefinedError, "%v %q is already defined in module %v", kind, name, m.name)
		}
	}
	if kind == LiteralsKind {
		return m.Literals.Add(name, def)
	}
	ns.Add(name, def)
	return nil
}

// AddSubmodule attaches sub under name.
func (m *Module) AddSubmodule(name string, sub *Module) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[string]*Module)
	}
	m.subs[name] = sub
}

// Submodule finds a direct submodule, or an import, by name.
func (m *Module) Submodule(name string) (*Module, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[name]; ok {
		return sub, true
	}
	sub, ok := m.imports[name]
	return sub, ok
}

// Import makes other reachable by qualified names starting with name.
func (m *Module) Import(name string, other *Module) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.imports == nil {
		m.imports = make(map[string]*Module)
	}
	m.imports[name] = other
}

// StarImport makes other's names resolvable without qualification, after
// m's own names and any earlier star imports.
func (m *Module) StarImport(other *Module) {
	if other == m {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, star := range m.stars {
		if star == other {
			return
		}
	}
	m.stars = append(m.stars, other)
}

// StarImports returns the star imported modules in import order.
func (m *Module) StarImports() []*Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Module(nil), m.stars...)
}

// markLoaded records that a loader has run for m, returning false if one
// already had.
func (m *Module) markLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return false
	}
	m.loaded = true
	return true
}

func (m *Module) unmarkLoaded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
}
