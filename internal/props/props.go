// Package props holds the property declarations through which
// components describe the quantities they consume and produce: the
// dimensions each quantity is viewed over, the units its values are
// expected in, and an optional short alias for raw-array keys.
package props

import (
	"fmt"
	"sort"

	"github.com/san-kum/fieldsim/internal/units"
)

// Wildcard is the dimension name that absorbs whatever state axes a
// declaration does not claim explicitly.
const Wildcard = "*"

// Property declares how a component views one named quantity.
//
// Dims distinguishes nil (not declared, to be borrowed or resolved)
// from the empty list (an explicit scalar). DimsLike takes the dims
// verbatim from another declared quantity; MatchDimsLike marks the
// wildcard in Dims as spanning the same axes as another quantity's
// wildcard. Both resolve exactly one hop.
type Property struct {
	Dims          []string
	Units         string
	Alias         string
	DimsLike      string
	MatchDimsLike string
}

// Properties maps quantity names to their declarations.
type Properties map[string]Property

// HasWildcard reports whether dims contains the wildcard.
func HasWildcard(dims []string) bool { return WildcardIndex(dims) >= 0 }

// WildcardIndex returns the position of the wildcard in dims, or -1.
func WildcardIndex(dims []string) int {
	for i, d := range dims {
		if d == Wildcard {
			return i
		}
	}
	return -1
}

func countWildcards(dims []string) int {
	n := 0
	for _, d := range dims {
		if d == Wildcard {
			n++
		}
	}
	return n
}

// Names returns the declared quantity names in sorted order.
func (ps Properties) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the declaration.
func (ps Properties) Clone() Properties {
	out := make(Properties, len(ps))
	for name, p := range ps {
		p.Dims = append([]string(nil), p.Dims...)
		out[name] = p
	}
	return out
}

// AliasFor returns the raw-array key for name: the declared alias if
// any, else the name itself.
func (ps Properties) AliasFor(name string) string {
	if p, ok := ps[name]; ok && p.Alias != "" {
		return p.Alias
	}
	return name
}

// Validate checks a standalone declaration, as used for component
// inputs. Every quantity must carry parseable units and either
// explicit dims or a resolvable DimsLike reference.
func (ps Properties) Validate() error {
	return ps.validate(nil)
}

// ValidateLinked checks a declaration whose quantities may borrow
// their dims from the companion input declaration, as used for
// outputs, tendencies and diagnostics.
func (ps Properties) ValidateLinked(input Properties) error {
	return ps.validate(input)
}

func (ps Properties) validate(input Properties) error {
	for _, name := range ps.Names() {
		p := ps[name]
		if !units.IsValid(p.Units) {
			return fmt.Errorf("%w: quantity %q: bad units %q", ErrInvalidDeclaration, name, p.Units)
		}
		if p.Dims != nil && p.DimsLike != "" {
			return fmt.Errorf("%w: quantity %q: dims and dims-like are mutually exclusive", ErrInvalidDeclaration, name)
		}
		if n := countWildcards(p.Dims); n > 1 {
			return fmt.Errorf("%w: quantity %q: %d wildcards in dims", ErrInvalidDeclaration, name, n)
		}
		if p.Dims == nil && p.DimsLike == "" {
			if _, ok := input[name]; !ok {
				return fmt.Errorf("%w: quantity %q: no dims declared", ErrInvalidDeclaration, name)
			}
		}
		if p.DimsLike != "" {
			if err := ps.checkLikeTarget(name, p.DimsLike, input, false); err != nil {
				return err
			}
		}
		if p.MatchDimsLike != "" {
			if p.Dims == nil || countWildcards(p.Dims) != 1 {
				return fmt.Errorf("%w: quantity %q: match-dims-like requires dims with exactly one wildcard", ErrInvalidDeclaration, name)
			}
			if err := ps.checkLikeTarget(name, p.MatchDimsLike, input, true); err != nil {
				return err
			}
			target, _ := ps.lookup(p.MatchDimsLike, input)
			if WildcardIndex(target.Dims) != WildcardIndex(p.Dims) {
				return fmt.Errorf("%w: quantity %q: wildcard position differs from %q", ErrInvalidDeclaration, name, p.MatchDimsLike)
			}
		}
	}
	return checkOverlappingAliases(ps)
}

// checkLikeTarget enforces the one-hop rule: the referenced quantity
// must exist, declare dims explicitly, and not itself be a reference.
// DimsLike targets must have no wildcard; MatchDimsLike targets must
// have one.
func (ps Properties) checkLikeTarget(name, targetName string, input Properties, wantWildcard bool) error {
	target, ok := ps.lookup(targetName, input)
	if !ok {
		return fmt.Errorf("%w: quantity %q: references unknown quantity %q", ErrInvalidDeclaration, name, targetName)
	}
	if target.DimsLike != "" || target.MatchDimsLike != "" {
		return fmt.Errorf("%w: quantity %q: chained reference through %q", ErrInvalidDeclaration, name, targetName)
	}
	if target.Dims == nil {
		return fmt.Errorf("%w: quantity %q: reference target %q has no dims", ErrInvalidDeclaration, name, targetName)
	}
	if wantWildcard != HasWildcard(target.Dims) {
		if wantWildcard {
			return fmt.Errorf("%w: quantity %q: match target %q has no wildcard", ErrInvalidDeclaration, name, targetName)
		}
		return fmt.Errorf("%w: quantity %q: dims-like target %q contains the wildcard", ErrInvalidDeclaration, name, targetName)
	}
	return nil
}

func (ps Properties) lookup(name string, input Properties) (Property, bool) {
	if p, ok := ps[name]; ok {
		return p, true
	}
	p, ok := input[name]
	return p, ok
}

func checkOverlappingAliases(ps Properties) error {
	byAlias := make(map[string]string)
	for _, name := range ps.Names() {
		alias := ps[name].Alias
		if alias == "" {
			continue
		}
		if prev, ok := byAlias[alias]; ok {
			return fmt.Errorf("%w: quantities %q and %q share alias %q", ErrInvalidDeclaration, prev, name, alias)
		}
		byAlias[alias] = name
	}
	return nil
}

// Resolved returns a copy of the declaration with every quantity's
// dims made explicit: DimsLike references expanded and missing dims
// borrowed from the companion input declaration.
func (ps Properties) Resolved(input Properties) (Properties, error) {
	out := make(Properties, len(ps))
	for _, name := range ps.Names() {
		p := ps[name]
		dims, err := resolveDims(name, p, ps, input)
		if err != nil {
			return nil, err
		}
		p.Dims = dims
		p.DimsLike = ""
		out[name] = p
	}
	return out, nil
}

// DimsOf resolves the dims list for one declared quantity, borrowing
// from input when the quantity declares none of its own. The second
// return is false when no dims can be determined.
func (ps Properties) DimsOf(name string, input Properties) ([]string, bool) {
	p, ok := ps[name]
	if !ok {
		return nil, false
	}
	dims, err := resolveDims(name, p, ps, input)
	if err != nil {
		return nil, false
	}
	return dims, true
}

func resolveDims(name string, p Property, own, input Properties) ([]string, error) {
	if p.Dims != nil {
		return append([]string(nil), p.Dims...), nil
	}
	if p.DimsLike != "" {
		if t, ok := own.lookup(p.DimsLike, input); ok && t.Dims != nil {
			return append([]string(nil), t.Dims...), nil
		}
		return nil, fmt.Errorf("%w: quantity %q: cannot resolve dims-like %q", ErrInvalidDeclaration, name, p.DimsLike)
	}
	if ip, ok := input[name]; ok {
		if ip.Dims != nil {
			return append([]string(nil), ip.Dims...), nil
		}
		if ip.DimsLike != "" {
			if t, ok := input[ip.DimsLike]; ok && t.Dims != nil {
				return append([]string(nil), t.Dims...), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: quantity %q: no dims declared", ErrInvalidDeclaration, name)
}
