package phoo

import (
	"context"
	"strings"
)

// Resolve finds the definition a name refers to in the given namespace, as
// seen from the running frame, along with the module it was found in. A
// name with no macro definition resolves to nil without error; a name with
// no word definition is an UnknownWordError when th is strict, and a native
// pushing its ambient value otherwise.
func (th *Thread) Resolve(name string, kind NamespaceKind) (Definition, *Module, error) {
	return th.resolve(name, kind, th.contextModule())
}

type aliasStep struct {
	name string
	mod  *Module
}

func (th *Thread) resolve(name string, kind NamespaceKind, from *Module) (Definition, *Module, error) {
	var seen map[aliasStep]bool
	for {
		def, mod, err := th.lookup(name, kind, from)
		if err != nil || def == nil {
			return nil, nil, err
		}
		alias, isAlias := def.(Word)
		if !isAlias {
			return def, mod, nil
		}
		if seen == nil {
			seen = make(map[aliasStep]bool)
		}
		step := aliasStep{name, mod}
		if seen[step] {
			return nil, nil, errorf(UnreachableError, "alias cycle through %v %q", kind, name)
		}
		seen[step] = true
		name, from = alias.Name(), mod
	}
}

func (th *Thread) lookup(name string, kind NamespaceKind, from *Module) (Definition, *Module, error) {
	if parts, ok := th.splitQualified(name); ok {
		return th.lookupQualified(name, parts, kind, from)
	}
	for _, mod := range th.searchPath(from) {
		if def, ok := mod.Namespace(kind).Find(name); ok {
			return def, mod, nil
		}
	}
	if kind == WordsKind {
		return th.undefinedWord(name)
	}
	return nil, nil, nil
}

// searchPath lists the modules a bare name is looked up in: from and its
// star imports, then the thread's module and its star imports, then the
// builtins.
func (th *Thread) searchPath(from *Module) []*Module {
	path := make([]*Module, 0, 8)
	add := func(mod *Module) {
		if mod == nil {
			return
		}
		for _, other := range path {
			if other == mod {
				return
			}
		}
		path = append(path, mod)
	}
	add(from)
	if from != nil {
		for _, star := range from.StarImports() {
			add(star)
		}
	}
	add(th.module)
	for _, star := range th.module.StarImports() {
		add(star)
	}
	add(th.interp.builtins)
	return path
}

// splitQualified splits "a:b:c" into its segments. A leading separator is
// kept as an empty first segment, rooting the name at the module cache.
// Names with other empty segments, like a lone separator, are not qualified.
func (th *Thread) splitQualified(name string) ([]string, bool) {
	sep := th.interp.sep
	if sep == "" || !strings.Contains(name, sep) {
		return nil, false
	}
	parts := strings.Split(name, sep)
	if len(parts) < 2 {
		return nil, false
	}
	for i, part := range parts {
		if part == "" && (i > 0 || len(parts) < 3) {
			return nil, false
		}
	}
	return parts, true
}

func (th *Thread) lookupQualified(name string, parts []string, kind NamespaceKind, from *Module) (Definition, *Module, error) {
	mod, ok := th.lookupRootModule(parts[0], parts[1], from)
	if parts[0] == "" {
		parts = parts[1:]
	}
	for _, part := range parts[1 : len(parts)-1] {
		if !ok {
			break
		}
		mod, ok = mod.Submodule(part)
	}
	if !ok {
		if kind != WordsKind {
			// tokens merely looking qualified are not macros
			return nil, nil, nil
		}
		return nil, nil, errorf(ModuleNotFoundError, "no module for qualified name %q", name)
	}
	last := parts[len(parts)-1]
	if def, found := mod.Namespace(kind).Find(last); found {
		return def, mod, nil
	}
	if kind == WordsKind {
		return nil, nil, errorf(UnknownWordError, "word %q does not exist in module %v", last, mod.Name())
	}
	return nil, nil, nil
}

// lookupRootModule finds the module a qualified name starts from: an import
// or submodule of from or of the thread's module, else a cached module. A
// rooted name, one with an empty first segment, goes straight to the cache.
func (th *Thread) lookupRootModule(first, second string, from *Module) (*Module, bool) {
	if first == "" {
		return th.interp.LookupModule(second)
	}
	if from != nil {
		if mod, ok := from.Submodule(first); ok {
			return mod, true
		}
	}
	if mod, ok := th.module.Submodule(first); ok {
		return mod, true
	}
	return th.interp.LookupModule(first)
}

func (th *Thread) undefinedWord(name string) (Definition, *Module, error) {
	if th.strict {
		return nil, nil, errorf(UnknownWordError, "word %q does not exist", name)
	}
	v := th.interp.ambientValue(name)
	return NewNative(name, func(_ context.Context, th *Thread) error {
		th.Push(v)
		return nil
	}), th.module, nil
}
