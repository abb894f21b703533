package units

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheSize = 256

// definition is a named unit in the registry, expressed relative to
// SI base units.
type definition struct {
	scale      float64
	offset     float64
	dims       dimVector
	prefixable bool
}

type prefix struct {
	symbol string
	factor float64
}

// Registry resolves unit names and caches parse and conversion
// results. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu          sync.RWMutex
	defs        map[string]definition
	prefixes    []prefix
	parseCache  *lru.Cache[string, Unit]
	factorCache *lru.Cache[string, Conversion]
}

// NewRegistry returns a registry loaded with the builtin unit table.
func NewRegistry() *Registry {
	parseCache, _ := lru.New[string, Unit](cacheSize)
	factorCache, _ := lru.New[string, Conversion](cacheSize)
	r := &Registry{
		defs:        builtinDefs(),
		prefixes:    builtinPrefixes(),
		parseCache:  parseCache,
		factorCache: factorCache,
	}
	return r
}

// resolve looks a name up in the registry, trying an exact match
// before splitting off an SI prefix. Exact names always win, so
// entries like "min" and "cd" shadow any prefix reading.
func (r *Registry) resolve(name string) (definition, float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.defs[name]; ok {
		return d, 1, nil
	}
	for _, p := range r.prefixes {
		if len(name) <= len(p.symbol) || !strings.HasPrefix(name, p.symbol) {
			continue
		}
		if d, ok := r.defs[name[len(p.symbol):]]; ok && d.prefixable {
			return d, p.factor, nil
		}
	}
	return definition{}, 0, ErrUnrecognizedUnit
}

// Register defines name as an alias for the given unit expression.
// Registered names are not prefixable and replace any existing
// definition. Intended for startup configuration, before states are
// built.
func (r *Registry) Register(name, def string) error {
	if name == "" || strings.ContainsAny(name, " \t*/^%°") {
		return fmt.Errorf("%w: invalid unit name %q", ErrBadDefinition, name)
	}
	if _, err := strconv.ParseFloat(name, 64); err == nil {
		return fmt.Errorf("%w: numeric unit name %q", ErrBadDefinition, name)
	}
	u, err := r.parse(def)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBadDefinition, def, err)
	}
	r.mu.Lock()
	r.defs[name] = definition{scale: u.Scale, offset: u.Offset, dims: u.dims}
	r.mu.Unlock()
	r.parseCache.Purge()
	r.factorCache.Purge()
	return nil
}

// Clean simplifies a unit expression token-algebraically: exponents
// of identical tokens are summed, zero exponents dropped, first-seen
// order preserved. Scales are never rebased, so prefixed tokens
// survive ("km s^-1 s" cleans to "km").
func (r *Registry) Clean(s string) (string, error) {
	factors, err := tokenize(s)
	if err != nil {
		return "", err
	}
	var order []string
	exps := map[string]int{}
	lit := 1.0
	for _, f := range factors {
		if f.name == "" {
			lit *= math.Pow(f.val, float64(f.exp))
			continue
		}
		if _, _, err := r.resolve(f.name); err != nil {
			return "", fmt.Errorf("%w: %q in %q", ErrUnrecognizedUnit, f.name, s)
		}
		if _, ok := exps[f.name]; !ok {
			order = append(order, f.name)
		}
		exps[f.name] += f.exp
	}
	var parts []string
	if lit != 1.0 {
		parts = append(parts, strconv.FormatFloat(lit, 'g', -1, 64))
	}
	for _, name := range order {
		switch e := exps[name]; {
		case e == 0:
		case e == 1:
			parts = append(parts, name)
		default:
			parts = append(parts, fmt.Sprintf("%s^%d", name, e))
		}
	}
	return strings.Join(parts, " "), nil
}

// Default is the registry used by the package-level functions.
var Default = NewRegistry()

// ResetRegistry discards all registered aliases, restoring the
// builtin table.
func ResetRegistry() { Default = NewRegistry() }

func Parse(s string) (Unit, error)                   { return Default.Parse(s) }
func IsValid(s string) bool                          { return Default.IsValid(s) }
func Compatible(a, b string) (bool, error)           { return Default.Compatible(a, b) }
func Same(a, b string) (bool, error)                 { return Default.Same(a, b) }
func Convert(v float64, from, to string) (float64, error) {
	return Default.Convert(v, from, to)
}
func Factor(from, to string) (Conversion, error) { return Default.Factor(from, to) }
func Register(name, def string) error            { return Default.Register(name, def) }
func Clean(s string) (string, error)             { return Default.Clean(s) }

func builtinPrefixes() []prefix {
	ps := []prefix{
		{"Y", 1e24}, {"yotta", 1e24},
		{"Z", 1e21}, {"zetta", 1e21},
		{"E", 1e18}, {"exa", 1e18},
		{"P", 1e15}, {"peta", 1e15},
		{"T", 1e12}, {"tera", 1e12},
		{"G", 1e9}, {"giga", 1e9},
		{"M", 1e6}, {"mega", 1e6},
		{"k", 1e3}, {"kilo", 1e3},
		{"h", 1e2}, {"hecto", 1e2},
		{"da", 1e1}, {"deca", 1e1}, {"deka", 1e1},
		{"d", 1e-1}, {"deci", 1e-1},
		{"c", 1e-2}, {"centi", 1e-2},
		{"m", 1e-3}, {"milli", 1e-3},
		{"u", 1e-6}, {"µ", 1e-6}, {"μ", 1e-6}, {"micro", 1e-6},
		{"n", 1e-9}, {"nano", 1e-9},
		{"p", 1e-12}, {"pico", 1e-12},
		{"f", 1e-15}, {"femto", 1e-15},
		{"a", 1e-18}, {"atto", 1e-18},
		{"z", 1e-21}, {"zepto", 1e-21},
		{"y", 1e-24}, {"yocto", 1e-24},
	}
	sort.Slice(ps, func(i, j int) bool {
		if len(ps[i].symbol) != len(ps[j].symbol) {
			return len(ps[i].symbol) > len(ps[j].symbol)
		}
		return ps[i].symbol < ps[j].symbol
	})
	return ps
}

func builtinDefs() map[string]definition {
	defs := make(map[string]definition)
	add := func(d definition, names ...string) {
		for _, n := range names {
			defs[n] = d
		}
	}
	dims := func(l, m, t, temp, ang, amt, cur, lum int8) dimVector {
		return dimVector{l, m, t, temp, ang, amt, cur, lum}
	}

	// SI base units.
	add(definition{scale: 1, dims: dims(1, 0, 0, 0, 0, 0, 0, 0), prefixable: true},
		"meter", "meters", "metre", "metres", "m")
	add(definition{scale: 1e-3, dims: dims(0, 1, 0, 0, 0, 0, 0, 0), prefixable: true},
		"gram", "grams", "g")
	add(definition{scale: 1, dims: dims(0, 0, 1, 0, 0, 0, 0, 0), prefixable: true},
		"second", "seconds", "sec", "secs", "s")
	add(definition{scale: 1, dims: dims(0, 0, 0, 1, 0, 0, 0, 0), prefixable: true},
		"kelvin", "kelvins", "K", "degK", "degreeK")
	add(definition{scale: 1, dims: dims(0, 0, 0, 0, 1, 0, 0, 0), prefixable: true},
		"radian", "radians", "rad")
	add(definition{scale: 1, dims: dims(0, 0, 0, 0, 0, 1, 0, 0), prefixable: true},
		"mole", "moles", "mol")
	add(definition{scale: 1, dims: dims(0, 0, 0, 0, 0, 0, 1, 0), prefixable: true},
		"ampere", "amperes", "amp", "amps", "A")
	add(definition{scale: 1, dims: dims(0, 0, 0, 0, 0, 0, 0, 1), prefixable: true},
		"candela", "candelas", "cd")

	// Angle in degrees, and the coordinate spellings used on
	// latitude and longitude axes.
	deg := definition{scale: math.Pi / 180, dims: dims(0, 0, 0, 0, 1, 0, 0, 0)}
	add(deg, "degree", "degrees", "deg")
	add(deg, "degrees_north", "degrees_N", "degreesN", "degree_north", "degree_N", "degreeN")
	add(deg, "degrees_east", "degrees_E", "degreesE", "degree_east", "degree_E", "degreeE")

	// Derived SI units.
	add(definition{scale: 1, dims: dims(0, 0, -1, 0, 0, 0, 0, 0), prefixable: true},
		"hertz", "Hz")
	add(definition{scale: 1, dims: dims(1, 1, -2, 0, 0, 0, 0, 0), prefixable: true},
		"newton", "newtons", "N")
	add(definition{scale: 1, dims: dims(-1, 1, -2, 0, 0, 0, 0, 0), prefixable: true},
		"pascal", "pascals", "Pa")
	add(definition{scale: 1, dims: dims(2, 1, -2, 0, 0, 0, 0, 0), prefixable: true},
		"joule", "joules", "J")
	add(definition{scale: 1, dims: dims(2, 1, -3, 0, 0, 0, 0, 0), prefixable: true},
		"watt", "watts", "W")
	add(definition{scale: 1, dims: dims(0, 0, 1, 0, 0, 0, 1, 0), prefixable: true},
		"coulomb", "coulombs", "C")
	add(definition{scale: 1, dims: dims(2, 1, -3, 0, 0, 0, -1, 0), prefixable: true},
		"volt", "volts", "V")
	add(definition{scale: 1e5, dims: dims(-1, 1, -2, 0, 0, 0, 0, 0), prefixable: true},
		"bar", "bars")
	add(definition{scale: 100, dims: dims(-1, 1, -2, 0, 0, 0, 0, 0)}, "mb")
	add(definition{scale: 101325, dims: dims(-1, 1, -2, 0, 0, 0, 0, 0)},
		"atm", "atmosphere", "atmospheres")
	add(definition{scale: 1e-3, dims: dims(3, 0, 0, 0, 0, 0, 0, 0), prefixable: true},
		"liter", "liters", "litre", "litres", "L", "l")
	add(definition{scale: 1000, dims: dims(0, 1, 0, 0, 0, 0, 0, 0)}, "tonne", "tonnes", "t")

	// Time units beyond the second. Not prefixable, so "min" never
	// reads as milli-inch and "d" never as deci-anything.
	add(definition{scale: 60, dims: dims(0, 0, 1, 0, 0, 0, 0, 0)}, "minute", "minutes", "min")
	add(definition{scale: 3600, dims: dims(0, 0, 1, 0, 0, 0, 0, 0)}, "hour", "hours", "hr", "h")
	add(definition{scale: 86400, dims: dims(0, 0, 1, 0, 0, 0, 0, 0)}, "day", "days", "d")
	add(definition{scale: 31557600, dims: dims(0, 0, 1, 0, 0, 0, 0, 0)}, "year", "years", "yr")

	// Dimensionless ratios.
	add(definition{scale: 1}, "dimensionless", "fraction")
	add(definition{scale: 0.01}, "percent")
	add(definition{scale: 1e-6}, "ppm")

	// Offset temperature scales. Only valid standalone; parse
	// rejects them inside compound expressions.
	add(definition{scale: 1, offset: 273.15, dims: dims(0, 0, 0, 1, 0, 0, 0, 0)},
		"degC", "degreeC", "celsius", "degree_Celsius")
	add(definition{scale: 5.0 / 9.0, offset: 273.15 - 160.0/9.0, dims: dims(0, 0, 0, 1, 0, 0, 0, 0)},
		"degF", "degreeF", "fahrenheit", "degree_Fahrenheit")

	return defs
}
