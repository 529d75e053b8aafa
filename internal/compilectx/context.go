// Package compilectx holds the configuration threaded explicitly through
// every stage of the compiler (spec.md Section 6, "Configuration"), loaded
// from an optional YAML file and overridable by environment variables.
// Nothing in lang/ reaches for a package-level global: every function that
// needs a setting takes a *Context.
package compilectx

import (
	"os"
	"reflect"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// ImplicitPushPolicy governs how a bare expression statement (one that is
// neither a let, assignment, verify, push, nor call to markInvalid) is
// treated: it implicitly leaves a value on the stack.
type ImplicitPushPolicy string

const (
	ImplicitPushAllow ImplicitPushPolicy = "allow"
	ImplicitPushWarn  ImplicitPushPolicy = "warn"
	ImplicitPushDeny  ImplicitPushPolicy = "deny"
)

// Target selects the compiler's output encoding.
type Target string

const (
	TargetAsm Target = "asm"
	TargetHex Target = "hex"
)

// Context carries every setting that changes the compiler's behavior or
// output. The default configuration is the one Default returns, built from
// the envDefault tags; the zero value differs from it (Optimize is false and
// the string fields are empty).
type Context struct {
	// Verbosity controls how much diagnostic detail the CLI prints. At 0,
	// the default, the optimizer already logs one line per rewrite site
	// (spec.md Section 4.4); levels 1 and up append before/after detail to
	// that same line.
	Verbosity int `yaml:"verbosity" env:"TXSC_VERBOSITY" envDefault:"0"`

	// ImplicitPushes selects how bare expression statements are handled.
	ImplicitPushes ImplicitPushPolicy `yaml:"implicit_pushes" env:"TXSC_IMPLICIT_PUSHES" envDefault:"warn"`

	// Optimize enables the optimizer's constant-folding, peephole, and
	// dead-code passes (spec.md Section 4.4). When false, only the
	// lowering pass's own dead-code marks are stripped.
	Optimize bool `yaml:"optimize" env:"TXSC_OPTIMIZE" envDefault:"true"`

	// Target selects the compiler's output encoding.
	Target Target `yaml:"target" env:"TXSC_TARGET" envDefault:"asm"`
}

// Default returns the Context with every field at its documented default.
func Default() *Context {
	c := &Context{}
	if err := env.Parse(c); err != nil {
		// env.Parse fails on a malformed envDefault tag, or on a TXSC_
		// variable whose value does not parse as its field's type (e.g.
		// TXSC_OPTIMIZE=maybe); Default panics in either case.
		panic(err)
	}
	return c
}

// Load reads a Context from a YAML file at path, then applies any
// TXSC_-prefixed environment variable overrides on top of it. Fields the
// file leaves out keep their Default values.
func Load(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// env.Parse assigns its envDefault to every field whose variable is
	// unset, which would overwrite the file's values, so it runs first and
	// only the variables that are actually set are copied back afterwards.
	c := &Context{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	fromEnv := *c
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	cv, ev := reflect.ValueOf(c).Elem(), reflect.ValueOf(fromEnv)
	for i := 0; i < cv.NumField(); i++ {
		if _, ok := os.LookupEnv(cv.Type().Field(i).Tag.Get("env")); ok {
			cv.Field(i).Set(ev.Field(i))
		}
	}
	return c, nil
}
