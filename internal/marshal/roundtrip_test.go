package marshal_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fieldsim/internal/marshal"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

func ramp(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i)
	}
	return v
}

var _ = Describe("marshalling round trip", func() {
	var (
		st    *state.State
		input props.Properties
	)

	BeforeEach(func() {
		st = state.New(time.Time{})
		temp, err := state.FromValues([]string{"lat", "lon", "mid"}, "degK", []int{2, 3, 4}, ramp(24))
		Expect(err).NotTo(HaveOccurred())
		st.Set("air_temperature", temp)
		flux, err := state.FromValues([]string{"lat", "lon"}, "W m^-2", []int{2, 3}, ramp(6))
		Expect(err).NotTo(HaveOccurred())
		st.Set("surface_flux", flux)
		input = props.Properties{
			"air_temperature": {Dims: []string{"*", "mid"}, Units: "degK"},
			"surface_flux":    {Dims: []string{"*"}, Units: "W m^-2"},
		}
	})

	It("reproduces data, dims and units", func() {
		raw, err := marshal.InflowArrays(st, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw["air_temperature"].Shape()).To(Equal([]int{6, 4}))
		Expect(raw["surface_flux"].Shape()).To(Equal([]int{6}))

		restored, err := marshal.RestoreQuantities(raw, input, st, input, nil)
		Expect(err).NotTo(HaveOccurred())
		for name := range input {
			orig, ok := st.Get(name)
			Expect(ok).To(BeTrue())
			got := restored[name]
			Expect(got).NotTo(BeNil())
			Expect(got.Dims()).To(Equal(orig.Dims()))
			Expect(got.Units()).To(Equal(orig.Units()))
			Expect(got.Values()).To(Equal(orig.Values()))
		}
	})

	It("keeps the wildcard span in state axis order", func() {
		res, err := marshal.ResolveWildcard(st, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Active).To(BeTrue())
		Expect(res.Wildcard).To(Equal([]string{"lat", "lon"}))
		Expect(res.SpanLen()).To(Equal(6))
	})

	It("restores transposed sources into declared order", func() {
		st2 := state.New(time.Time{})
		tr, err := state.FromValues([]string{"mid", "lat", "lon"}, "degK", []int{4, 2, 3}, ramp(24))
		Expect(err).NotTo(HaveOccurred())
		st2.Set("air_temperature", tr)
		pr := props.Properties{"air_temperature": {Dims: []string{"*", "mid"}, Units: "degK"}}

		raw, err := marshal.InflowArrays(st2, pr)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw["air_temperature"].Shape()).To(Equal([]int{6, 4}))

		restored, err := marshal.RestoreQuantities(raw, pr, st2, pr, nil)
		Expect(err).NotTo(HaveOccurred())
		got := restored["air_temperature"]
		Expect(got.Dims()).To(Equal([]string{"lat", "lon", "mid"}))
		Expect(got.Array().At(1, 2, 3)).To(Equal(tr.Array().At(3, 1, 2)))
	})
})
