package integrators

const (
	defaultAsselinStrength = 0.05
	defaultFilterAlpha     = 0.5
)

type config struct {
	name     string
	tendDiag bool
	asselin  float64
	alpha    float64
}

// Option adjusts how an integrator is constructed.
type Option func(*config)

// WithName overrides the integrator name used in synthesized
// diagnostic names. It defaults to the scheme name.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithTendenciesInDiagnostics reports the first-order difference of
// each stepped quantity as a diagnostic named
// "{quantity}_tendency_from_{integrator}".
func WithTendenciesInDiagnostics() Option {
	return func(c *config) { c.tendDiag = true }
}

// WithAsselinStrength sets the Robert-Asselin filter strength. Only
// Leapfrog reads it; zero disables the filter.
func WithAsselinStrength(strength float64) Option {
	return func(c *config) { c.asselin = strength }
}

// WithAlpha sets the Williams split of the filter influence between
// the current and the new state. Only Leapfrog reads it; 1 applies
// everything to the current state.
func WithAlpha(alpha float64) Option {
	return func(c *config) { c.alpha = alpha }
}

func buildConfig(opts []Option) config {
	c := config{asselin: defaultAsselinStrength, alpha: defaultFilterAlpha}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
