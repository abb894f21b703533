package contract

import (
	"fmt"
	"strings"
)

type options struct {
	name       string
	tendDiag   bool
	noValidate bool
	packer     TracerPacker
}

// Option adjusts how a component wrapper is constructed.
type Option func(*options)

// WithName overrides the component name used in error messages and in
// synthesized diagnostic names. It defaults to the kernel's type name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithTendenciesInDiagnostics reports the component's own change rates
// as diagnostics named "{quantity}_tendency_from_{component}".
func WithTendenciesInDiagnostics() Option {
	return func(o *options) { o.tendDiag = true }
}

// WithoutValidation skips the input and output checks on every call.
// Marshalling still runs. This is a trust mode for hot loops where the
// caller guarantees the state matches the declarations.
func WithoutValidation() Option {
	return func(o *options) { o.noValidate = true }
}

// WithTracerPacker supplies the packer used for kernels that implement
// TracerSpec.
func WithTracerPacker(p TracerPacker) Option {
	return func(o *options) { o.packer = p }
}

func buildOptions(kernel any, opts []Option) options {
	o := options{name: kernelName(kernel)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// kernelName derives a component name from the kernel's type.
func kernelName(kernel any) string {
	name := fmt.Sprintf("%T", kernel)
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// tracerDims returns the packed dims when both sides of the tracer
// hook are present: a packer option and a kernel TracerSpec.
func tracerDims(kernel any, o options) []string {
	if o.packer == nil {
		return nil
	}
	if ts, ok := kernel.(TracerSpec); ok {
		return ts.TracerSpec()
	}
	return nil
}

func tendencyDiagnosticName(quantity, component string) string {
	return fmt.Sprintf("%s_tendency_from_%s", quantity, component)
}
