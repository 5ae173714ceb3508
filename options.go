package phoo

import (
	"io"
	"io/ioutil"
)

// Option configures an Interp under New.
type Option interface{ apply(ip *Interp) }

// Options combines several options into one.
type Options []Option

var defaults = Options{
	withOutput(ioutil.Discard),
	withMaxDepth(DefaultMaxDepth),
	withStrictMode(true),
	withNamepathSeparator(DefaultNamepathSeparator),
	withPrelude(true),
}

func (opts Options) apply(ip *Interp) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(ip)
		}
	}
}

// WithOutput directs the output words (echo, emit, cr) to w.
func WithOutput(w io.Writer) Option { return withOutput(w) }

// WithTee copies output to w as well as any prior output.
func WithTee(w io.Writer) Option { return withTee(w) }

// WithLogf enables trace logging through logfn.
func WithLogf(logfn func(mess string, args ...interface{})) Option { return withLogfn(logfn) }

// WithMaxDepth bounds every thread's return stack; zero means unbounded.
func WithMaxDepth(depth int) Option { return withMaxDepth(depth) }

// WithStrictMode sets whether new threads start strict: undefined words and
// redefinitions are errors when strict.
func WithStrictMode(strict bool) Option { return withStrictMode(strict) }

// WithNamepathSeparator sets the separator in qualified names like
// "module:word".
func WithNamepathSeparator(sep string) Option { return withNamepathSeparator(sep) }

// WithLoaders appends module loaders, tried in order by Import.
func WithLoaders(loaders ...Loader) Option { return withLoaders(loaders) }

// WithAmbient provides the values that undefined words push when a thread
// is not strict. Names missing from values push Undefined.
func WithAmbient(values map[string]Value) Option { return withAmbient(values) }

// WithPrelude controls whether New defines the prelude words, which are
// written in the language itself on top of the builtins.
func WithPrelude(enabled bool) Option { return withPrelude(enabled) }

type withLogfn func(mess string, args ...interface{})
type outputOption struct{ io.Writer }
type teeOption struct{ io.Writer }
type withMaxDepth int
type withStrictMode bool
type withNamepathSeparator string
type withLoaders []Loader
type withAmbient map[string]Value
type withPrelude bool

func withOutput(w io.Writer) outputOption { return outputOption{w} }
func withTee(w io.Writer) teeOption       { return teeOption{w} }

func (logfn withLogfn) apply(ip *Interp) { ip.logfn = logfn }

func (o outputOption) apply(ip *Interp) { ip.setOutput(o.Writer) }

func (o teeOption) apply(ip *Interp) { ip.addTee(o.Writer) }

func (depth withMaxDepth) apply(ip *Interp)        { ip.maxDepth = int(depth) }
func (strict withStrictMode) apply(ip *Interp)     { ip.strict = bool(strict) }
func (sep withNamepathSeparator) apply(ip *Interp) { ip.sep = string(sep) }
func (loaders withLoaders) apply(ip *Interp)       { ip.loaders = append(ip.loaders, loaders...) }
func (enabled withPrelude) apply(ip *Interp)       { ip.prelude = bool(enabled) }
func (values withAmbient) apply(ip *Interp) {
	if ip.ambient == nil {
		ip.ambient = make(map[string]Value, len(values))
	}
	for name, v := range values {
		ip.ambient[name] = v
	}
}
