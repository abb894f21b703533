package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fieldsim/internal/analysis"
	"github.com/san-kum/fieldsim/internal/automation"
	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/integrators"
	"github.com/san-kum/fieldsim/internal/metrics"
	"github.com/san-kum/fieldsim/internal/models"
	"github.com/san-kum/fieldsim/internal/optim"
	"github.com/san-kum/fieldsim/internal/sim"
	"github.com/san-kum/fieldsim/internal/state"
	"github.com/san-kum/fieldsim/internal/storage"
	"github.com/san-kum/fieldsim/internal/units"
	"github.com/san-kum/fieldsim/internal/viz"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configFile  string
	presetName  string
	modelName   string
	stepperName string
	abOrder     int
	rkStages    int
	stepCount   int
	dtFlag      string
	trackFlag   []string
	showPlot    bool
	showMetrics bool
	saveRun     bool
	members     int
	spread      float64
	outputDir   string
	phasePair   []string
	sweepParam  string
	sweepFrom   float64
	sweepTo     float64
	sweepPoints int
	sweepMetric string
	sweepTarget float64
)

// main registers the fieldsim commands and flags and executes the root
// command. It exits the process with status 1 if command execution fails.
func main() {
	rootCmd := &cobra.Command{
		Use:   "fieldsim",
		Short: "field simulation lab with unit-checked state",
		Long: `fieldsim runs small dynamical models on labelled, unit-checked state.
Pick a model, a time differencing scheme and a timestep; track quantities,
plot them, and save runs for later inspection.`,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	runCmd.Flags().StringVar(&presetName, "preset", "", "start from a named preset")
	runCmd.Flags().StringVar(&modelName, "model", "", "model to run")
	runCmd.Flags().StringVar(&stepperName, "stepper", "", "time differencing scheme")
	runCmd.Flags().IntVar(&abOrder, "order", 3, "Adams-Bashforth order (1-4)")
	runCmd.Flags().IntVar(&rkStages, "stages", 3, "Runge-Kutta stage count (2 or 3)")
	runCmd.Flags().IntVar(&stepCount, "steps", 500, "number of steps")
	runCmd.Flags().StringVar(&dtFlag, "dt", "100ms", "timestep, e.g. 100ms or 30s")
	runCmd.Flags().StringSliceVar(&trackFlag, "track", nil, "quantities to record")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot tracked quantities after the run")
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print range and drift metrics")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "save the run under the output directory")
	runCmd.Flags().IntVar(&members, "ensemble", 0, "run N perturbed copies instead of one")
	runCmd.Flags().Float64Var(&spread, "spread", 0.01, "fractional perturbation across ensemble members")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "run simulation with live view",
		RunE:  runWatch,
	}
	watchCmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	watchCmd.Flags().StringVar(&presetName, "preset", "", "start from a named preset")
	watchCmd.Flags().StringVar(&modelName, "model", "", "model to run")
	watchCmd.Flags().StringVar(&stepperName, "stepper", "", "time differencing scheme")
	watchCmd.Flags().IntVar(&abOrder, "order", 3, "Adams-Bashforth order (1-4)")
	watchCmd.Flags().IntVar(&rkStages, "stages", 3, "Runge-Kutta stage count (2 or 3)")
	watchCmd.Flags().IntVar(&stepCount, "steps", 500, "number of steps")
	watchCmd.Flags().StringVar(&dtFlag, "dt", "100ms", "timestep, e.g. 100ms or 30s")
	watchCmd.Flags().StringSliceVar(&trackFlag, "track", nil, "quantity to chart (first entry)")

	compareCmd := &cobra.Command{
		Use:   "compare [model]",
		Short: "compare steppers on one model",
		Args:  cobra.ExactArgs(1),
		RunE:  compareSteppers,
	}
	compareCmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	compareCmd.Flags().IntVar(&stepCount, "steps", 200, "number of steps")
	compareCmd.Flags().StringVar(&dtFlag, "dt", "100ms", "timestep, e.g. 100ms or 30s")
	compareCmd.Flags().StringSliceVar(&trackFlag, "track", nil, "quantity to compare (first entry)")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list saved runs",
		RunE:  listRuns,
	}
	runsCmd.Flags().StringVar(&outputDir, "output", "runs", "directory runs were saved under")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run-id]",
		Short: "analyze a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&outputDir, "output", "runs", "directory runs were saved under")
	analyzeCmd.Flags().StringSliceVar(&phasePair, "phase", nil, "two quantities to scatter against each other")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "sweep a model parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepParameter,
	}
	sweepCmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	sweepCmd.Flags().StringVar(&stepperName, "stepper", "", "time differencing scheme")
	sweepCmd.Flags().IntVar(&stepCount, "steps", 200, "number of steps per setting")
	sweepCmd.Flags().StringVar(&dtFlag, "dt", "100ms", "timestep, e.g. 100ms or 30s")
	sweepCmd.Flags().StringSliceVar(&trackFlag, "track", nil, "quantity to score (first entry)")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0, "lowest parameter value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 1, "highest parameter value")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 5, "number of settings to try")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "drift", "score: drift or target")
	sweepCmd.Flags().Float64Var(&sweepTarget, "target", 0, "wanted final mean for --metric target")
	cobra.CheckErr(sweepCmd.MarkFlagRequired("param"))

	batchCmd := &cobra.Command{
		Use:   "batch [manifest]",
		Short: "run a batch manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatchFile,
	}
	batchCmd.Flags().StringVar(&outputDir, "output", "runs", "directory to save batch runs under")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models",
		RunE:  listModels,
	}

	steppersCmd := &cobra.Command{
		Use:   "steppers",
		Short: "list steppers",
		RunE:  listSteppers,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		RunE:  listPresets,
	}

	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "unit expression tools",
	}
	unitsCheckCmd := &cobra.Command{
		Use:   "check [expr]",
		Short: "validate a unit expression",
		Args:  cobra.ExactArgs(1),
		RunE:  unitsCheck,
	}
	unitsConvertCmd := &cobra.Command{
		Use:   "convert [value] [from] [to]",
		Short: "convert a value between units",
		Args:  cobra.ExactArgs(3),
		RunE:  unitsConvert,
	}
	unitsCompatCmd := &cobra.Command{
		Use:   "compat [a] [b]",
		Short: "check unit compatibility",
		Args:  cobra.ExactArgs(2),
		RunE:  unitsCompat,
	}
	unitsCmd.AddCommand(unitsCheckCmd, unitsConvertCmd, unitsCompatCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fieldsim %s\n", version)
		},
	}

	rootCmd.AddCommand(runCmd, watchCmd, compareCmd, runsCmd, analyzeCmd, sweepCmd, batchCmd,
		modelsCmd, steppersCmd, presetsCmd, unitsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig assembles the effective configuration: a config file or a
// preset as the base, then any flags the user set on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case presetName != "":
		cfg = config.GetPreset(presetName)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %s)",
				presetName, strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = modelName
	}
	if flags.Changed("stepper") {
		cfg.Stepper = stepperName
	}
	if flags.Changed("order") {
		cfg.Order = abOrder
	}
	if flags.Changed("stages") {
		cfg.Stages = rkStages
	}
	if flags.Changed("steps") {
		cfg.Steps = stepCount
	}
	if flags.Changed("dt") {
		d, err := time.ParseDuration(dtFlag)
		if err != nil {
			return nil, fmt.Errorf("bad --dt %q: %w", dtFlag, err)
		}
		cfg.Dt = config.Duration(d)
	}
	if flags.Changed("track") {
		cfg.Track = trackFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.RegisterUnits(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildStepper picks the time differencing scheme for an experiment.
// Models that advance themselves keep their built-in stepper.
func buildStepper(cfg *config.Config, exp *models.Experiment) (contract.Stepper, string, error) {
	if exp.Stepper != nil {
		return exp.Stepper, "built-in", nil
	}

	scheme := cfg.Stepper
	if scheme == "" {
		scheme = exp.DefaultStepper
	}
	if scheme == "" {
		scheme = config.StepperForwardEuler
	}

	var opts []integrators.Option
	if cfg.TendenciesInDiagnostics {
		opts = append(opts, integrators.WithTendenciesInDiagnostics())
	}

	switch scheme {
	case config.StepperForwardEuler:
		s, err := integrators.NewForwardEuler(exp.Sources, opts...)
		if err != nil {
			return nil, "", err
		}
		return s, scheme, nil
	case config.StepperAdamsBashforth:
		s, err := integrators.NewAdamsBashforth(cfg.Order, exp.Sources, opts...)
		if err != nil {
			return nil, "", err
		}
		return s, scheme, nil
	case config.StepperSSPRK:
		s, err := integrators.NewSSPRungeKutta(cfg.Stages, exp.Sources, opts...)
		if err != nil {
			return nil, "", err
		}
		return s, scheme, nil
	case config.StepperLeapfrog:
		opts = append(opts,
			integrators.WithAsselinStrength(cfg.AsselinStrength),
			integrators.WithAlpha(cfg.Alpha))
		s, err := integrators.NewLeapfrog(exp.Sources, opts...)
		if err != nil {
			return nil, "", err
		}
		return s, scheme, nil
	default:
		return nil, "", fmt.Errorf("unknown stepper %q", scheme)
	}
}

// buildRun constructs the experiment and its fully wired stepper,
// including the experiment's diagnostic components.
func buildRun(cfg *config.Config) (*models.Experiment, contract.Stepper, string, error) {
	exp, err := models.New(cfg.Model, models.Params(cfg.Parameters))
	if err != nil {
		return nil, nil, "", err
	}
	s, scheme, err := buildStepper(cfg, exp)
	if err != nil {
		return nil, nil, "", err
	}
	s, err = sim.WithDiagnostics(s, exp.Diagnostics...)
	if err != nil {
		return nil, nil, "", err
	}
	return exp, s, scheme, nil
}

// trackedQuantities decides what to record: the user's choice, the
// experiment's suggestion, or every initial quantity.
func trackedQuantities(cfg *config.Config, exp *models.Experiment) []string {
	if len(cfg.Track) > 0 {
		return cfg.Track
	}
	if len(exp.Tracked) > 0 {
		return exp.Tracked
	}
	return exp.Initial.Names()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if members > 1 {
		return runEnsemble(cfg)
	}

	exp, stepper, scheme, err := buildRun(cfg)
	if err != nil {
		return err
	}
	tracked := trackedQuantities(cfg, exp)

	series := metrics.NewSeries(tracked...)
	runner := sim.Runner{Stepper: stepper}
	runner.AddObserver(series)

	var ranges []*metrics.Range
	var drift *metrics.Drift
	if showMetrics {
		for _, q := range tracked {
			r := metrics.NewRange(q)
			ranges = append(ranges, r)
			runner.AddObserver(r)
		}
		driftQ := tracked[0]
		for _, q := range tracked {
			if q == models.TotalEnergyName {
				driftQ = q
			}
		}
		drift = metrics.NewDrift(driftQ)
		runner.AddObserver(drift)
	}

	fmt.Printf("running %s (%s, dt=%s, steps=%d)\n\n", cfg.Model, scheme, cfg.Dt, cfg.Steps)
	result, err := runner.Run(context.Background(), exp.Initial, sim.Config{Dt: cfg.Dt.Std(), Steps: cfg.Steps})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "steps\t%d\n", result.Steps)
	fmt.Fprintf(w, "model time\t%s\n", result.Final.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "wall time\t%s\n", result.Elapsed)
	for _, q := range tracked {
		fmt.Fprintf(w, "%s\t%.6g\n", q, series.Last(q))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if showMetrics {
		fmt.Println("\nmetrics:")
		mw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(mw, "QUANTITY\tMIN\tMAX\tMEAN")
		for _, r := range ranges {
			fmt.Fprintf(mw, "%s\t%.6g\t%.6g\t%.6g\n", r.Quantity(), r.Min(), r.Max(), r.Mean())
		}
		if err := mw.Flush(); err != nil {
			return err
		}
		fmt.Printf("drift (%s): %.3g\n", drift.Quantity(), drift.Value())
	}

	if showPlot {
		printPlots(series, tracked)
	}

	if saveRun {
		store := storage.New(cfg.OutputDir)
		if err := store.Init(); err != nil {
			return err
		}
		if cfg.Stepper == "" {
			cfg.Stepper = scheme // record the resolved scheme
		}
		runID, err := store.SaveRun(cfg.Model, cfg, result, series)
		if err != nil {
			return err
		}
		fmt.Printf("\nsaved: %s\n", filepath.Join(cfg.OutputDir, runID))
	}
	return nil
}

// runEnsemble fans the configured run out over perturbed copies of the
// initial state and reports how far the members spread.
func runEnsemble(cfg *config.Config) error {
	exp, _, scheme, err := buildRun(cfg)
	if err != nil {
		return err
	}
	tracked := trackedQuantities(cfg, exp)
	quantity := tracked[0]

	initials := make([]*state.State, members)
	factors := make([]float64, members)
	for i := range initials {
		frac := float64(i)/float64(members-1)*2 - 1 // spread members over [-1, 1]
		factors[i] = 1 + spread*frac
		initials[i] = perturbed(exp.Initial, factors[i])
	}

	fresh := func() (contract.Stepper, error) {
		e, err := models.New(cfg.Model, models.Params(cfg.Parameters))
		if err != nil {
			return nil, err
		}
		s, _, err := buildStepper(cfg, e)
		if err != nil {
			return nil, err
		}
		return sim.WithDiagnostics(s, e.Diagnostics...)
	}

	fmt.Printf("running %s ensemble (%s, %d members, spread=%g, dt=%s, steps=%d)\n\n",
		cfg.Model, scheme, members, spread, cfg.Dt, cfg.Steps)
	results, err := sim.RunEnsemble(context.Background(), initials,
		sim.Config{Dt: cfg.Dt.Std(), Steps: cfg.Steps}, fresh)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "MEMBER\tFACTOR\tFINAL %s\n", strings.ToUpper(quantity))
	min, max := math.Inf(1), math.Inf(-1)
	for i, res := range results {
		mean := stateMean(res.Final, quantity)
		if mean < min {
			min = mean
		}
		if mean > max {
			max = mean
		}
		fmt.Fprintf(w, "%d\t%.4f\t%.6g\n", i, factors[i], mean)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nfinal spread (%s): %.6g\n", quantity, max-min)
	return nil
}

// perturbed scales every quantity in the state by the given factor.
func perturbed(st *state.State, factor float64) *state.State {
	out := state.New(st.Time)
	for _, name := range st.Names() {
		q, _ := st.Get(name)
		out.Set(name, q.Scaled(factor))
	}
	return out
}

// stateMean averages a quantity's values, NaN if absent.
func stateMean(st *state.State, name string) float64 {
	q, ok := st.Get(name)
	if !ok {
		return math.NaN()
	}
	vals := q.Values()
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func printPlots(series *metrics.Series, tracked []string) {
	for _, q := range tracked {
		vals := plottable(series.Values(q))
		if len(vals) < 2 {
			continue
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(vals,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(q)))
	}
}

// plottable drops NaN samples, which the chart cannot scale around.
func plottable(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	probe, err := models.New(cfg.Model, models.Params(cfg.Parameters))
	if err != nil {
		return err
	}
	tracked := trackedQuantities(cfg, probe)

	build := func() (contract.Stepper, *state.State, error) {
		exp, err := models.New(cfg.Model, models.Params(cfg.Parameters))
		if err != nil {
			return nil, nil, err
		}
		s, _, err := buildStepper(cfg, exp)
		if err != nil {
			return nil, nil, err
		}
		s, err = sim.WithDiagnostics(s, exp.Diagnostics...)
		if err != nil {
			return nil, nil, err
		}
		return s, exp.Initial, nil
	}

	m, err := viz.NewModel(cfg.Model, tracked[0], cfg.Dt.Std(), cfg.Steps, build)
	if err != nil {
		return err
	}
	return viz.Run(m)
}

type schemeRun struct {
	final   float64
	values  []float64
	elapsed time.Duration
}

// runScheme runs a fresh copy of the model under one scheme.
func runScheme(cfg *config.Config, scheme string, dt time.Duration, steps int, quantity string) (schemeRun, error) {
	runCfg := cfg.Clone()
	runCfg.Stepper = scheme

	exp, err := models.New(cfg.Model, models.Params(cfg.Parameters))
	if err != nil {
		return schemeRun{}, err
	}
	s, _, err := buildStepper(runCfg, exp)
	if err != nil {
		return schemeRun{}, err
	}
	s, err = sim.WithDiagnostics(s, exp.Diagnostics...)
	if err != nil {
		return schemeRun{}, err
	}

	series := metrics.NewSeries(quantity)
	runner := sim.Runner{Stepper: s}
	runner.AddObserver(series)
	result, err := runner.Run(context.Background(), exp.Initial, sim.Config{Dt: dt, Steps: steps})
	if err != nil {
		return schemeRun{}, err
	}

	final := stateMean(result.Final, quantity)
	if math.IsNaN(final) {
		// diagnostics live in the observed series, not the final state
		final = series.Last(quantity)
	}
	return schemeRun{final: final, values: series.Values(quantity), elapsed: result.Elapsed}, nil
}

func compareSteppers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Model = args[0]

	exp, err := models.New(cfg.Model, models.Params(cfg.Parameters))
	if err != nil {
		return err
	}
	if exp.Stepper != nil {
		return fmt.Errorf("model %q advances itself and cannot be compared across schemes", cfg.Model)
	}
	tracked := trackedQuantities(cfg, exp)
	quantity := tracked[0]

	// reference: the strong stability preserving scheme at a much finer
	// timestep
	const refine = 20
	refCfg := cfg.Clone()
	refCfg.Stages = 3
	ref, err := runScheme(refCfg, config.StepperSSPRK, cfg.Dt.Std()/refine, cfg.Steps*refine, quantity)
	if err != nil {
		return err
	}

	fmt.Printf("comparing steppers on %s (dt=%s, steps=%d)\n", cfg.Model, cfg.Dt, cfg.Steps)
	fmt.Printf("reference %s: %.6g (ssprk, dt/%d)\n\n", quantity, ref.final, refine)

	schemes := []string{
		config.StepperForwardEuler,
		config.StepperAdamsBashforth,
		config.StepperSSPRK,
		config.StepperLeapfrog,
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STEPPER\tFINAL %s\tABS ERROR\tWALL TIME\n", strings.ToUpper(quantity))
	var plots [][]float64
	var legends []string
	for _, scheme := range schemes {
		out, err := runScheme(cfg, scheme, cfg.Dt.Std(), cfg.Steps, quantity)
		if err != nil {
			fmt.Fprintf(w, "%s\tfailed: %v\t\t\n", scheme, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%.6g\t%.3g\t%s\n", scheme, out.final, math.Abs(out.final-ref.final), out.elapsed)
		plots = append(plots, plottable(out.values))
		legends = append(legends, scheme)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(plots) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.PlotMany(plots,
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Red, asciigraph.Yellow, asciigraph.Green, asciigraph.Blue),
			asciigraph.SeriesLegends(legends...),
			asciigraph.Caption(quantity)))
	}
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDEFAULT STEPPER\tTRACKED\tDESCRIPTION")
	for _, name := range models.Names() {
		exp, err := models.New(name, nil)
		if err != nil {
			return err
		}
		scheme := exp.DefaultStepper
		if exp.Stepper != nil {
			scheme = "built-in"
		}
		if scheme == "" {
			scheme = config.StepperForwardEuler
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, scheme, strings.Join(exp.Tracked, ","), exp.Description)
	}
	return w.Flush()
}

func listSteppers(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tTUNABLES")
	fmt.Fprintf(w, "%s\tsingle step\t-\n", config.StepperForwardEuler)
	fmt.Fprintf(w, "%s\tmulti step\torder 1-4\n", config.StepperAdamsBashforth)
	fmt.Fprintf(w, "%s\tmulti stage\tstages 2 or 3\n", config.StepperSSPRK)
	fmt.Fprintf(w, "%s\tthree level\tasselin_strength, alpha\n", config.StepperLeapfrog)
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL\tSTEPPER\tDT\tSTEPS\tTRACKED")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			name, p.Model, p.Stepper, p.Dt, p.Steps, strings.Join(p.Track, ","))
	}
	return w.Flush()
}

func unitsCheck(cmd *cobra.Command, args []string) error {
	cleaned, err := units.Clean(args[0])
	if err != nil {
		return err
	}
	if cleaned == "" {
		cleaned = "dimensionless"
	}
	fmt.Printf("%s is valid (canonical form: %s)\n", args[0], cleaned)
	return nil
}

func unitsConvert(cmd *cobra.Command, args []string) error {
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("bad value %q: %w", args[0], err)
	}
	out, err := units.Convert(v, args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Printf("%g %s = %g %s\n", v, args[1], out, args[2])
	return nil
}

func unitsCompat(cmd *cobra.Command, args []string) error {
	ok, err := units.Compatible(args[0], args[1])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("%s and %s are not compatible\n", args[0], args[1])
		return nil
	}
	conv, err := units.Factor(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("%s and %s are compatible (scale %g", args[0], args[1], conv.Scale)
	if conv.Shift != 0 {
		fmt.Printf(", shift %g", conv.Shift)
	}
	fmt.Println(")")
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(outputDir)
	metas, err := store.List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Printf("no saved runs under %s\n", outputDir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tSTEPPER\tSAVED\tSTEPS\tWALL TIME")
	for _, m := range metas {
		scheme := m.Stepper
		if scheme == "" {
			scheme = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.ID, m.Model, scheme, m.Timestamp.Local().Format("2006-01-02 15:04:05"), m.Steps, m.WallTime)
	}
	return w.Flush()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	store := storage.New(outputDir)
	meta, err := store.LoadMetadata(runID)
	if err != nil {
		return err
	}
	data, err := store.LoadSeries(runID)
	if err != nil {
		return err
	}
	dt, err := time.ParseDuration(meta.Dt)
	if err != nil {
		return fmt.Errorf("bad dt %q in run metadata: %w", meta.Dt, err)
	}

	fmt.Printf("%s: %s over %d steps (dt=%s)\n\n", runID, meta.Model, meta.Steps, dt)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUANTITY\tFIRST\tLAST\tMIN\tMAX\tPERIOD")
	for _, name := range data.Names {
		finite := plottable(data.Columns[name])
		if len(finite) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", name)
			continue
		}
		min, max := finite[0], finite[0]
		for _, v := range finite {
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
		period := "-"
		if p := analysis.DominantPeriod(finite, dt); p > 0 {
			period = p.String()
		}
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.6g\t%.6g\t%s\n",
			name, finite[0], finite[len(finite)-1], min, max, period)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(phasePair) > 0 {
		if len(phasePair) != 2 {
			return fmt.Errorf("--phase needs exactly two quantities, got %d", len(phasePair))
		}
		xs, ok := data.Columns[phasePair[0]]
		if !ok {
			return fmt.Errorf("run %s did not record %q", runID, phasePair[0])
		}
		ys, ok := data.Columns[phasePair[1]]
		if !ok {
			return fmt.Errorf("run %s did not record %q", runID, phasePair[1])
		}
		fmt.Printf("\n%s vs %s:\n%s", phasePair[1], phasePair[0], analysis.Scatter(xs, ys, 60, 20))
	}
	return nil
}

func sweepParameter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Model = args[0]

	if sweepMetric != "drift" && sweepMetric != "target" {
		return fmt.Errorf("unknown --metric %q (drift or target)", sweepMetric)
	}
	probe, err := models.New(cfg.Model, models.Params(cfg.Parameters))
	if err != nil {
		return err
	}
	if probe.Stepper == nil && cfg.Stepper == "" {
		// pin the scheme so the settings stay comparable
		cfg.Stepper = probe.DefaultStepper
	}
	tracked := trackedQuantities(cfg, probe)
	quantity := tracked[0]
	if sweepMetric == "drift" {
		for _, q := range tracked {
			if q == models.TotalEnergyName {
				quantity = q
			}
		}
	}

	grid, err := optim.NewGridSearch(
		[]string{sweepParam},
		[][]float64{optim.Span(sweepFrom, sweepTo, sweepPoints)})
	if err != nil {
		return err
	}

	fmt.Printf("sweeping %s.%s over [%g, %g] in %d settings (%s of %s)\n\n",
		cfg.Model, sweepParam, sweepFrom, sweepTo, sweepPoints, sweepMetric, quantity)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSCORE\n", strings.ToUpper(sweepParam))

	score := func(params map[string]float64) (float64, error) {
		runParams := make(map[string]float64, len(cfg.Parameters)+len(params))
		for k, v := range cfg.Parameters {
			runParams[k] = v
		}
		for k, v := range params {
			runParams[k] = v
		}
		val, err := scoreRun(cfg, runParams, quantity)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(w, "%.6g\t%.6g\n", params[sweepParam], val)
		return val, nil
	}

	best, err := grid.Search(context.Background(), score)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nbest %s = %.6g (score %.6g)\n", sweepParam, best.Params[sweepParam], best.Value)
	return nil
}

// scoreRun runs the model once with the given parameters and scores
// the quantity: accumulated drift, or distance from --target.
func scoreRun(cfg *config.Config, params map[string]float64, quantity string) (float64, error) {
	exp, err := models.New(cfg.Model, models.Params(params))
	if err != nil {
		return 0, err
	}
	s, _, err := buildStepper(cfg, exp)
	if err != nil {
		return 0, err
	}
	s, err = sim.WithDiagnostics(s, exp.Diagnostics...)
	if err != nil {
		return 0, err
	}

	series := metrics.NewSeries(quantity)
	runner := sim.Runner{Stepper: s}
	runner.AddObserver(series)
	var drift *metrics.Drift
	if sweepMetric == "drift" {
		drift = metrics.NewDrift(quantity)
		runner.AddObserver(drift)
	}

	result, err := runner.Run(context.Background(), exp.Initial, sim.Config{Dt: cfg.Dt.Std(), Steps: cfg.Steps})
	if err != nil {
		return 0, err
	}
	if sweepMetric == "drift" {
		return drift.Value(), nil
	}
	final := stateMean(result.Final, quantity)
	if math.IsNaN(final) {
		final = series.Last(quantity)
	}
	return math.Abs(final - sweepTarget), nil
}

func runBatchFile(cmd *cobra.Command, args []string) error {
	b, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}
	store := storage.New(outputDir)
	if err := store.Init(); err != nil {
		return err
	}

	name := b.Name
	if name == "" {
		name = args[0]
	}
	fmt.Printf("batch %s: %d runs\n", name, len(b.Runs))
	results, err := automation.RunBatch(context.Background(), b, batchStepper, store, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRUN ID\tSTEPS\tWALL TIME")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Name, r.RunID, r.Result.Steps, r.Result.Elapsed)
	}
	return w.Flush()
}

func batchStepper(cfg *config.Config, exp *models.Experiment) (contract.Stepper, error) {
	s, _, err := buildStepper(cfg, exp)
	if err != nil {
		return nil, err
	}
	return sim.WithDiagnostics(s, exp.Diagnostics...)
}
