package phoo

import (
	"context"
	"sort"
	"sync"
)

// Well known module names.
const (
	BuiltinsModule = "builtins"
	MainModule     = "__main__"
)

// Defaults for the corresponding options.
const (
	DefaultMaxDepth          = 10000
	DefaultNamepathSeparator = ":"
)

// Interp owns the module cache, the builtins module, the loaders, and the
// output stream shared by all of its threads.
type Interp struct {
	logging
	outputCore

	maxDepth int
	strict   bool
	sep      string
	prelude  bool
	loaders  []Loader
	ambient  map[string]Value

	mu       sync.Mutex
	modules  map[string]*Module
	builtins *Module
}

// New creates an interpreter with the builtins module populated and, unless
// disabled by WithPrelude(false), the prelude words defined on top of it.
func New(opts ...Option) (*Interp, error) {
	ip := &Interp{modules: make(map[string]*Module)}
	defaults.apply(ip)
	Options(opts).apply(ip)

	ip.builtins = ip.Module(BuiltinsModule)
	ip.builtins.markLoaded()
	if err := installBuiltins(ip.builtins); err != nil {
		return nil, err
	}
	if ip.prelude {
		if err := ip.definePrelude(context.Background()); err != nil {
			return nil, err
		}
	}
	return ip, nil
}

// Builtins returns the module searched last when resolving any bare name.
func (ip *Interp) Builtins() *Module { return ip.builtins }

// NamepathSeparator returns the separator used in qualified names.
func (ip *Interp) NamepathSeparator() string { return ip.sep }

// Module returns the cached module of the given name, creating an empty one
// if needed. Created modules are not loaded; see Import.
func (ip *Interp) Module(name string) *Module {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	mod, ok := ip.modules[name]
	if !ok {
		mod = NewModule(name)
		ip.modules[name] = mod
	}
	return mod
}

// LookupModule returns a cached module without creating it.
func (ip *Interp) LookupModule(name string) (*Module, bool) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	mod, ok := ip.modules[name]
	return mod, ok
}

// Modules returns the names of all cached modules, sorted.
func (ip *Interp) Modules() []string {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	names := make([]string, 0, len(ip.modules))
	for name := range ip.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run compiles and executes src on a fresh thread against the main module,
// returning its final work stack.
func (ip *Interp) Run(ctx context.Context, src string) ([]Value, error) {
	th := ip.Thread(MainModule)
	stack, err := th.Run(ctx, Text(src))
	if ferr := ip.Flush(); err == nil && ferr != nil {
		err = ferr
	}
	return stack, err
}

// Spawn compiles and executes src on a new thread of the named module in
// the background; the result channel receives exactly one Result.
func (ip *Interp) Spawn(ctx context.Context, module string, src Value) (*Thread, <-chan Result) {
	th := ip.Thread(module)
	results := make(chan Result, 1)
	go func() {
		stack, err := th.Run(ctx, src)
		results <- Result{stack, err}
	}()
	return th, results
}

func (ip *Interp) ambientValue(name string) Value {
	if v, ok := ip.ambient[name]; ok {
		return v
	}
	return Undefined
}
