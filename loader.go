package phoo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Loader populates a module on its first import. Load reports false, with
// no error, when it has nothing for the module; the next loader is tried.
type Loader interface {
	Load(ctx context.Context, th *Thread, mod *Module) (bool, error)
}

// SourceLoader loads modules from source files in a file system: module
// "a:b" is read from "a/b" plus Ext, then compiled and executed on a child
// thread defining into the module.
type SourceLoader struct {
	FS  fs.FS
	Ext string
}

// DefaultSourceExt is used by SourceLoaders with an empty Ext.
const DefaultSourceExt = ".ph"

// Load reads and runs the module's source, if the file exists.
func (sl SourceLoader) Load(ctx context.Context, th *Thread, mod *Module) (bool, error) {
	ext := sl.Ext
	if ext == "" {
		ext = DefaultSourceExt
	}
	name := mod.Name()
	if sep := th.interp.sep; sep != "" {
		name = strings.ReplaceAll(name, sep, "/")
	}
	filename := path.Clean(name) + ext
	if !fs.ValidPath(filename) {
		return false, nil
	}
	src, err := fs.ReadFile(sl.FS, filename)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, Wrap(ModuleNotFoundError, err, nil)
	}
	th.logf("+", "load %v from %v", mod.Name(), filename)
	child := th.NewChild(mod)
	defer th.RemoveChild(child)
	if _, err := child.Run(ctx, Text(src)); err != nil {
		return false, err
	}
	return true, nil
}

// NativeLoader populates modules from host functions keyed by module name.
type NativeLoader map[string]func(mod *Module) error

// Load runs the function registered for the module's name, if any.
func (nl NativeLoader) Load(_ context.Context, _ *Thread, mod *Module) (bool, error) {
	load, ok := nl[mod.Name()]
	if !ok {
		return false, nil
	}
	return true, load(mod)
}

// Import returns the named module, loading it with the first loader that
// recognizes it if this is its first import. A module that is still being
// loaded, as happens with cyclic imports, is returned as it stands. Importing
// "a:b" also attaches the module as submodule "b" of "a".
func (th *Thread) Import(ctx context.Context, name string) (*Module, error) {
	ip := th.interp
	mod := ip.Module(name)
	if !mod.markLoaded() {
		return mod, nil
	}

	found := false
	for _, loader := range ip.loaders {
		ok, err := loader.Load(ctx, th, mod)
		if err != nil {
			mod.unmarkLoaded()
			ip.evictModule(name, mod)
			var pe *Error
			if errors.As(err, &pe) && pe.Kind.IsA(ModuleNotFoundError) {
				return nil, err
			}
			we := Wrap(ModuleNotFoundError, err, nil)
			if we.Kind == ModuleNotFoundError {
				we.Message = fmt.Sprintf("loading module %q: %v", name, we.Message)
			}
			return nil, we
		}
		if ok {
			found = true
			break
		}
	}
	if !found {
		mod.unmarkLoaded()
		ip.dropModule(name, mod)
		return nil, errorf(ModuleNotFoundError, "module %q not found", name)
	}

	if sep := ip.sep; sep != "" {
		if i := strings.LastIndex(name, sep); i > 0 {
			ip.Module(name[:i]).AddSubmodule(name[i+len(sep):], mod)
		}
	}
	return mod, nil
}

// dropModule uncaches mod if it was created for an import that found
// nothing and nothing has been defined into it since.
func (ip *Interp) dropModule(name string, mod *Module) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.modules[name] == mod && len(mod.Words.Names()) == 0 && len(mod.Macros.Names()) == 0 {
		delete(ip.modules, name)
	}
}

// evictModule uncaches mod after a failed load, discarding whatever the
// loader defined into it before failing.
func (ip *Interp) evictModule(name string, mod *Module) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.modules[name] == mod {
		delete(ip.modules, name)
	}
}

// importName is the name an imported module is attached under: the last
// segment of its qualified name.
func (ip *Interp) importName(name string) string {
	if sep := ip.sep; sep != "" {
		if i := strings.LastIndex(name, sep); i >= 0 {
			return name[i+len(sep):]
		}
	}
	return name
}
