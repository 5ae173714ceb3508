package phoo

import "regexp"

// Namespace maps names to stacks of definitions. Adding a name shadows any
// prior definition, which becomes visible again once the newer one is
// forgotten.
type Namespace struct {
	defs  map[string][]Definition
	order []string
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{defs: make(map[string][]Definition)}
}

// Add pushes def as the visible definition of name. An array definition
// that has no name yet takes this one; the name is what return stack traces
// show.
func (ns *Namespace) Add(name string, def Definition) {
	if ns.defs == nil {
		ns.defs = make(map[string][]Definition)
	}
	stack, known := ns.defs[name]
	if !known {
		ns.order = append(ns.order, name)
	}
	ns.defs[name] = append(stack, def)
	if arr, ok := def.(*Array); ok && arr.name == "" {
		arr.name = name
	}
}

// Forget pops the visible definition of name, returning it.
func (ns *Namespace) Forget(name string) (Definition, bool) {
	stack := ns.defs[name]
	i := len(stack) - 1
	if i < 0 {
		return nil, false
	}
	def := stack[i]
	stack[i] = nil
	ns.defs[name] = stack[:i]
	return def, true
}

// Find returns the visible definition of name.
func (ns *Namespace) Find(name string) (Definition, bool) {
	if i := len(ns.defs[name]) - 1; i >= 0 {
		return ns.defs[name][i], true
	}
	return nil, false
}

// Depth returns how many definitions name has, visible and shadowed.
func (ns *Namespace) Depth(name string) int { return len(ns.defs[name]) }

// Names returns every name with a visible definition, in the order the
// names were first added.
func (ns *Namespace) Names() []string {
	names := make([]string, 0, len(ns.order))
	for _, name := range ns.order {
		if len(ns.defs[name]) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// copyFrom adds the visible definition of every name in other; shadowed
// history is not copied.
func (ns *Namespace) copyFrom(other *Namespace) {
	for _, name := range other.Names() {
		def, _ := other.Find(name)
		ns.Add(name, def)
	}
}

// LiteralRules holds (pattern, codegen) pairs keyed by pattern source, tried
// in registration order.
type LiteralRules struct {
	Namespace
	patterns map[string]*regexp.Regexp
}

// NewLiteralRules returns an empty rule set.
func NewLiteralRules() *LiteralRules {
	return &LiteralRules{
		Namespace: Namespace{defs: make(map[string][]Definition)},
		patterns:  make(map[string]*regexp.Regexp),
	}
}

// Add registers codegen for tokens matching pattern; patterns should
// anchor themselves.
func (lr *LiteralRules) Add(pattern string, codegen Definition) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Wrap(TypeMismatchError, err, nil)
	}
	if lr.patterns == nil {
		lr.patterns = make(map[string]*regexp.Regexp)
	}
	lr.patterns[pattern] = re
	lr.Namespace.Add(pattern, codegen)
	return nil
}

// Match tries each visible rule in order, returning the codegen of the
// first whose pattern matches token along with the match record.
func (lr *LiteralRules) Match(token string) (Definition, *Record, bool) {
	for _, pattern := range lr.Names() {
		re := lr.patterns[pattern]
		if re == nil {
			continue
		}
		if idx := re.FindStringSubmatchIndex(token); idx != nil {
			def, _ := lr.Find(pattern)
			return def, matchRecord(re, token, idx), true
		}
	}
	return nil, nil, false
}

func (lr *LiteralRules) copyFrom(other *LiteralRules) {
	for _, pattern := range other.Names() {
		def, _ := other.Find(pattern)
		if lr.patterns == nil {
			lr.patterns = make(map[string]*regexp.Regexp)
		}
		lr.patterns[pattern] = other.patterns[pattern]
		lr.Namespace.Add(pattern, def)
	}
}

// matchRecord makes the record a codegen receives: group indexes as Number
// keys, named groups as Text keys, unmatched groups Undefined.
func matchRecord(re *regexp.Regexp, token string, idx []int) *Record {
	rec := NewRecord()
	names := re.SubexpNames()
	for i := 0; 2*i+1 < len(idx); i++ {
		var v Value = Undefined
		if start, end := idx[2*i], idx[2*i+1]; start >= 0 {
			v = Text(token[start:end])
		}
		rec.Set(Number(i), v)
		if i < len(names) && names[i] != "" {
			rec.Set(Text(names[i]), v)
		}
	}
	return rec
}
