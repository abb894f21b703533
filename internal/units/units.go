package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dimension indices of the exponent vector carried by every parsed unit.
const (
	dimLength = iota
	dimMass
	dimTime
	dimTemperature
	dimAngle
	dimAmount
	dimCurrent
	dimLuminous
	numDims
)

type dimVector [numDims]int8

func (d dimVector) isZero() bool {
	for _, e := range d {
		if e != 0 {
			return false
		}
	}
	return true
}

// Unit is a parsed unit expression: a scale relative to SI base units,
// an exponent per base dimension, and an additive offset for the
// standalone temperature scales.
type Unit struct {
	Scale  float64
	Offset float64
	dims   dimVector
}

// Dimensionless reports whether the unit carries no base dimensions.
func (u Unit) Dimensionless() bool { return u.dims.isZero() }

// CompatibleWith reports whether a conversion factor to v exists.
func (u Unit) CompatibleWith(v Unit) bool { return u.dims == v.dims }

// Conversion is the affine map taking a value in one unit to another:
// out = in*Scale + Shift. Shift is zero except for offset temperature
// conversions.
type Conversion struct {
	Scale float64
	Shift float64
}

// Apply converts a single value.
func (c Conversion) Apply(v float64) float64 { return v*c.Scale + c.Shift }

// factor is one multiplicative term of a unit expression.
type factor struct {
	name string // empty for numeric literals
	val  float64
	exp  int
}

// tokenize splits a unit expression into factors. Whitespace and '*'
// separate factors; '/' negates the exponent of the factor that
// follows it; exponents attach with '^' or '**'.
func tokenize(s string) ([]factor, error) {
	s = strings.ReplaceAll(s, "**", "^")
	s = strings.ReplaceAll(s, "%", "percent")
	s = strings.ReplaceAll(s, "°", "degree")
	var out []factor
	i := 0
	divide := false
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '*':
			i++
			continue
		case '/':
			if divide {
				return nil, fmt.Errorf("%w: %q", ErrUnrecognizedUnit, s)
			}
			divide = true
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '*' && s[j] != '/' {
			j++
		}
		tok := s[i:j]
		i = j
		f, err := parseToken(tok, s)
		if err != nil {
			return nil, err
		}
		if divide {
			f.exp = -f.exp
			divide = false
		}
		out = append(out, f)
	}
	if divide {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedUnit, s)
	}
	return out, nil
}

func parseToken(tok, expr string) (factor, error) {
	name := tok
	exp := 1
	if k := strings.IndexByte(tok, '^'); k >= 0 {
		name = tok[:k]
		e, err := strconv.Atoi(tok[k+1:])
		if err != nil {
			return factor{}, fmt.Errorf("%w: bad exponent in %q", ErrUnrecognizedUnit, expr)
		}
		exp = e
	}
	if name == "" {
		return factor{}, fmt.Errorf("%w: %q", ErrUnrecognizedUnit, expr)
	}
	if v, err := strconv.ParseFloat(name, 64); err == nil {
		return factor{val: v, exp: exp}, nil
	}
	return factor{name: name, exp: exp}, nil
}

// Parse resolves a unit expression against the registry. The empty
// string parses as dimensionless unity.
func (r *Registry) Parse(s string) (Unit, error) {
	if u, ok := r.parseCache.Get(s); ok {
		return u, nil
	}
	u, err := r.parse(s)
	if err != nil {
		return Unit{}, err
	}
	r.parseCache.Add(s, u)
	return u, nil
}

func (r *Registry) parse(s string) (Unit, error) {
	factors, err := tokenize(s)
	if err != nil {
		return Unit{}, err
	}
	u := Unit{Scale: 1}
	for _, f := range factors {
		if f.name == "" {
			u.Scale *= math.Pow(f.val, float64(f.exp))
			continue
		}
		def, prefix, err := r.resolve(f.name)
		if err != nil {
			return Unit{}, fmt.Errorf("%w: %q in %q", ErrUnrecognizedUnit, f.name, s)
		}
		if def.offset != 0 {
			if len(factors) != 1 || f.exp != 1 {
				return Unit{}, fmt.Errorf("%w: %q in %q", ErrOffsetUnitInCompound, f.name, s)
			}
			return Unit{Scale: def.scale, Offset: def.offset, dims: def.dims}, nil
		}
		u.Scale *= math.Pow(prefix*def.scale, float64(f.exp))
		for d := range u.dims {
			u.dims[d] += def.dims[d] * int8(f.exp)
		}
	}
	return u, nil
}

// IsValid reports whether the expression parses.
func (r *Registry) IsValid(s string) bool {
	_, err := r.Parse(s)
	return err == nil
}

// Compatible reports whether a conversion between the two unit
// expressions exists. It errors only when an expression is unparseable.
func (r *Registry) Compatible(a, b string) (bool, error) {
	ua, err := r.Parse(a)
	if err != nil {
		return false, err
	}
	ub, err := r.Parse(b)
	if err != nil {
		return false, err
	}
	return ua.CompatibleWith(ub), nil
}

// Same reports whether two expressions denote the identical unit:
// equal dimensionality, scale and offset.
func (r *Registry) Same(a, b string) (bool, error) {
	ua, err := r.Parse(a)
	if err != nil {
		return false, err
	}
	ub, err := r.Parse(b)
	if err != nil {
		return false, err
	}
	return ua.CompatibleWith(ub) && closeTo(ua.Scale, ub.Scale) && closeTo(ua.Offset, ub.Offset), nil
}

func closeTo(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= 1e-12*scale
}

// Factor returns the affine conversion from one unit expression to
// another. Results are cached per (from, to) pair.
func (r *Registry) Factor(from, to string) (Conversion, error) {
	key := from + "\x00" + to
	if c, ok := r.factorCache.Get(key); ok {
		return c, nil
	}
	uf, err := r.Parse(from)
	if err != nil {
		return Conversion{}, err
	}
	ut, err := r.Parse(to)
	if err != nil {
		return Conversion{}, err
	}
	if !uf.CompatibleWith(ut) {
		return Conversion{}, fmt.Errorf("%w: cannot convert %q to %q", ErrIncompatibleUnits, from, to)
	}
	c := Conversion{
		Scale: uf.Scale / ut.Scale,
		Shift: (uf.Offset - ut.Offset) / ut.Scale,
	}
	r.factorCache.Add(key, c)
	return c, nil
}

// Convert converts a single value between unit expressions.
func (r *Registry) Convert(v float64, from, to string) (float64, error) {
	c, err := r.Factor(from, to)
	if err != nil {
		return 0, err
	}
	return c.Apply(v), nil
}

// TendencyUnits returns the unit a time derivative of a quantity in
// the given units must carry: the input units times s^-1, or bare
// s^-1 for a dimensionless quantity.
func TendencyUnits(u string) string {
	if u == "" {
		return "s^-1"
	}
	return u + " s^-1"
}
