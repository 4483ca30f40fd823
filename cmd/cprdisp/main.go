// Command cprdisp estimates chest-compression velocity and displacement from
// recorded acceleration profiles. It lists the profiles in a directory, runs
// one estimator (or all three with -compare), prints each record as it is
// produced and writes the result next to the input profile.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/displacement.report/internal/analysis"
	"github.com/banshee-data/displacement.report/internal/chart"
	"github.com/banshee-data/displacement.report/internal/config"
	"github.com/banshee-data/displacement.report/internal/db"
	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/monitoring"
	"github.com/banshee-data/displacement.report/internal/profile"
	"github.com/banshee-data/displacement.report/internal/simulate"
	"github.com/banshee-data/displacement.report/internal/timeutil"
	"github.com/banshee-data/displacement.report/internal/version"
)

// Options holds the parsed command line.
type Options struct {
	Dir          string
	List         bool
	Profile      string
	Index        int
	Method       string
	Alpha        float64
	CorrectEvery int
	ConfigPath   string
	FallbackDT   float64
	Unit         string
	Quiet        bool
	Verbose      bool
	Compare      bool
	PNG          string
	HTML         string
	DBPath       string
	Runs         bool
	ShowRun      string
	DeleteRun    string
	Migrate      string
	Simulate     float64
	Noise        float64
	Version      bool

	// set records which flags were given explicitly so they can override
	// values from the config file.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*Options, error) {
	opts := &Options{set: map[string]bool{}}
	fs := flag.NewFlagSet("cprdisp", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.Dir, "dir", ".", "Directory containing cpr_profile_*cmps2.csv files")
	fs.BoolVar(&opts.List, "list", false, "List available profiles and exit")
	fs.StringVar(&opts.Profile, "profile", "", "Path to the profile to process")
	fs.IntVar(&opts.Index, "index", -1, "Index of the profile to process (see -list)")
	fs.StringVar(&opts.Method, "method", "", "Estimator: integrate (1), highpass (2) or kalman (3)")
	fs.Float64Var(&opts.Alpha, "alpha", estimator.DefaultAlpha, "High-pass filter coefficient in (0, 1]")
	fs.IntVar(&opts.CorrectEvery, "correct-every", estimator.DefaultCorrectEvery, "Kalman zero-velocity correction period in samples")
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a JSON or YAML tuning file")
	fs.Float64Var(&opts.FallbackDT, "dt", 0.01, "Sample interval in seconds for single-row profiles")
	fs.StringVar(&opts.Unit, "unit", "", "Override the acceleration unit of the input column")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Do not print the per-sample table")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&opts.Compare, "compare", false, "Run all three estimators and print a drift summary")
	fs.StringVar(&opts.PNG, "png", "", "Write a PNG grid of every profile in -dir to this path")
	fs.StringVar(&opts.HTML, "html", "", "Write an interactive HTML chart of every profile in -dir to this path")
	fs.StringVar(&opts.DBPath, "db", "", "SQLite file in which to record runs")
	fs.BoolVar(&opts.Runs, "runs", false, "List runs stored in -db and exit")
	fs.StringVar(&opts.ShowRun, "run", "", "Print the records of the run with this ID from -db and exit")
	fs.StringVar(&opts.DeleteRun, "delete-run", "", "Delete the run with this ID from -db and exit")
	fs.StringVar(&opts.Migrate, "migrate", "", "Run store schema action: up, down or status")
	fs.Float64Var(&opts.Simulate, "simulate", 0, "Write a synthetic profile with this peak (cm/s²) into -dir and exit")
	fs.Float64Var(&opts.Noise, "noise", 0, "Measurement noise std (mm/s²) for -simulate")
	fs.BoolVar(&opts.Version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// tuning merges the config file with explicitly set flags. Without -config
// the shipped defaults file is used when it can be found.
func (o *Options) tuning() (*config.EstimatorConfig, error) {
	var cfg *config.EstimatorConfig
	if o.ConfigPath != "" {
		loaded, err := config.LoadEstimatorConfig(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if loaded, err := config.LoadDefaultConfig(); err == nil {
		cfg = loaded
	} else {
		monitoring.Debugf("using built-in defaults: %v", err)
		cfg = config.DefaultEstimatorConfig()
	}
	if o.set["method"] {
		cfg.Method = &o.Method
	}
	if o.set["alpha"] {
		cfg.Alpha = &o.Alpha
	}
	if o.set["correct-every"] {
		cfg.CorrectEvery = &o.CorrectEvery
	}
	if o.set["dt"] {
		cfg.FallbackDT = &o.FallbackDT
	}
	if o.set["unit"] {
		cfg.InputUnit = &o.Unit
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type app struct {
	opts  *Options
	cfg   *config.EstimatorConfig
	fsys  fsutil.FileSystem
	in    *bufio.Reader
	out   io.Writer
	clock timeutil.Clock
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if err := run(context.Background(), opts, fsutil.OSFileSystem{}, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("cprdisp: %v", err)
	}
}

func run(ctx context.Context, opts *Options, fsys fsutil.FileSystem, in io.Reader, out io.Writer) error {
	if opts.Version {
		fmt.Fprintf(out, "cprdisp %s\n", version.String())
		return nil
	}
	monitoring.SetVerbose(opts.Verbose)

	cfg, err := opts.tuning()
	if err != nil {
		return err
	}
	a := &app{
		opts:  opts,
		cfg:   cfg,
		fsys:  fsys,
		in:    bufio.NewReader(in),
		out:   out,
		clock: timeutil.RealClock{},
	}

	switch {
	case opts.Simulate > 0:
		return a.simulate()
	case opts.Runs:
		return a.listRuns(ctx)
	case opts.ShowRun != "":
		return a.showRun(ctx, opts.ShowRun)
	case opts.DeleteRun != "":
		return a.deleteRun(ctx, opts.DeleteRun)
	case opts.Migrate != "":
		return a.migrate(opts.Migrate)
	}

	profiles, err := profile.Discover(fsys, opts.Dir, cfg.GetProfilePattern())
	if err != nil {
		return err
	}
	if opts.List {
		printProfiles(out, profiles)
		return nil
	}

	plotOnly := (opts.PNG != "" || opts.HTML != "") &&
		opts.Profile == "" && opts.Index < 0 && !opts.set["method"] && !opts.Compare
	if !plotOnly {
		path, err := a.selectProfile(profiles)
		if err != nil {
			return err
		}
		if opts.Compare {
			err = a.compare(ctx, path)
		} else {
			err = a.estimate(ctx, path)
		}
		if err != nil {
			return err
		}
	}

	if opts.PNG != "" || opts.HTML != "" {
		return a.render(profiles)
	}
	return nil
}

func printProfiles(out io.Writer, profiles []string) {
	fmt.Fprintln(out, "Available CSV files:")
	for i, p := range profiles {
		fmt.Fprintf(out, "%d: %s\n", i, filepath.Base(p))
	}
}

func (a *app) prompt(msg string) (string, error) {
	fmt.Fprint(a.out, msg)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) selectProfile(profiles []string) (string, error) {
	if a.opts.Profile != "" {
		return a.opts.Profile, nil
	}
	if len(profiles) == 0 {
		return "", fmt.Errorf("no profiles matching %q in %s", a.cfg.GetProfilePattern(), a.opts.Dir)
	}

	idx := a.opts.Index
	if idx < 0 {
		printProfiles(a.out, profiles)
		answer, err := a.prompt("Enter the number of the file to use and press enter: ")
		if err != nil {
			return "", err
		}
		idx, err = strconv.Atoi(answer)
		if err != nil {
			return "", fmt.Errorf("invalid profile number %q", answer)
		}
	}
	if idx < 0 || idx >= len(profiles) {
		return "", fmt.Errorf("profile index %d out of range (0-%d)", idx, len(profiles)-1)
	}
	return profiles[idx], nil
}

func (a *app) selectMethod() (estimator.Method, error) {
	if a.opts.set["method"] || (a.opts.ConfigPath != "" && a.cfg.Method != nil) {
		return a.cfg.GetMethod(), nil
	}
	answer, err := a.prompt("Choose your filter:\n" +
		"\t- Basic Integration (1)\n" +
		"\t- Integration with high pass filter (2)\n" +
		"\t- Integration with Kalman filter (3)\n")
	if err != nil {
		return 0, err
	}
	return estimator.ParseMethod(answer)
}

func (a *app) loadOptions() profile.LoadOptions {
	return profile.LoadOptions{FallbackDT: a.cfg.GetFallbackDT(), Unit: a.cfg.GetInputUnit()}
}

func (a *app) estimate(ctx context.Context, path string) error {
	samples, err := profile.Load(a.fsys, path, a.loadOptions())
	if err != nil {
		return err
	}
	m, err := a.selectMethod()
	if err != nil {
		return err
	}
	ecfg := a.cfg.ToEstimator(m)

	stream, err := estimator.NewStream(samples.Accel, samples.DT, ecfg)
	if err != nil {
		return err
	}

	start := a.clock.Now()
	if !a.opts.Quiet {
		fmt.Fprintln(a.out, "Index\tVelocity (mm/s)\tDisplacement (mm)")
	}
	records := make([]estimator.Record, 0, stream.Len())
	for r := range stream.All() {
		if !a.opts.Quiet {
			fmt.Fprintf(a.out, "%d\t%.2f\t\t%.2f\n", r.Index, r.Velocity, r.Displacement)
		}
		records = append(records, r)
	}
	monitoring.Debugf("%s: %d samples in %v", m, len(records), a.clock.Since(start))

	outPath := profile.ResultPath(path, m)
	if err := profile.WriteResult(a.fsys, outPath, samples, records); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\nResults saved to %s\n", outPath)

	return a.record(ctx, path, samples.DT, []analysis.Run{{Config: ecfg, Records: records}})
}

func (a *app) compare(ctx context.Context, path string) error {
	samples, err := profile.Load(a.fsys, path, a.loadOptions())
	if err != nil {
		return err
	}
	cfgs := make([]estimator.Config, len(estimator.Methods))
	for i, m := range estimator.Methods {
		cfgs[i] = a.cfg.ToEstimator(m)
	}

	runs, err := analysis.Compare(ctx, samples.Time, samples.Accel, samples.DT, cfgs)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%d samples, dt=%g s)\n", filepath.Base(path), samples.Len(), samples.DT)
	if err := analysis.WriteTable(a.out, runs); err != nil {
		return err
	}
	for _, r := range runs {
		outPath := profile.ResultPath(path, r.Config.Method)
		if err := profile.WriteResult(a.fsys, outPath, samples, r.Records); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Results saved to %s\n", outPath)
	}
	return a.record(ctx, path, samples.DT, runs)
}

// record stores runs in the run database when -db is set.
func (a *app) record(ctx context.Context, path string, dt float64, runs []analysis.Run) error {
	if a.opts.DBPath == "" {
		return nil
	}
	store, err := db.NewDBWithClock(a.opts.DBPath, a.clock)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range runs {
		id, err := store.SaveRun(ctx, &db.Run{
			Profile: profile.ProfileName(path),
			Config:  r.Config,
			DT:      dt,
			Records: r.Records,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Recorded %s run %s in %s\n", r.Config.Method, id, a.opts.DBPath)
	}
	return nil
}

// openStore opens the run database for the store-only modes.
func (a *app) openStore(mode string) (*db.DB, error) {
	if a.opts.DBPath == "" {
		return nil, fmt.Errorf("-%s requires -db", mode)
	}
	return db.NewDBWithClock(a.opts.DBPath, a.clock)
}

func (a *app) listRuns(ctx context.Context) error {
	store, err := a.openStore("runs")
	if err != nil {
		return err
	}
	defer store.Close()

	filter := ""
	if a.opts.Profile != "" {
		filter = profile.ProfileName(a.opts.Profile)
	}
	runs, err := store.ListRuns(ctx, filter)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintln(a.out, r.String())
	}
	return nil
}

func (a *app) showRun(ctx context.Context, id string) error {
	store, err := a.openStore("run")
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.LoadRun(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Run %s: %s on %s, dt=%g s, recorded %s\n",
		run.ID, run.Config.Method.Label(), run.Profile, run.DT, run.CreatedAt.Format(time.RFC3339))
	fmt.Fprintln(a.out, "Index\tVelocity (mm/s)\tDisplacement (mm)")
	for _, r := range run.Records {
		fmt.Fprintf(a.out, "%d\t%.2f\t\t%.2f\n", r.Index, r.Velocity, r.Displacement)
	}
	return nil
}

func (a *app) deleteRun(ctx context.Context, id string) error {
	store, err := a.openStore("delete-run")
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteRun(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted run %s from %s\n", id, a.opts.DBPath)
	return nil
}

// migrate applies a schema action to the run store. Opening the store
// already applies pending migrations, so "up" only reports the version.
func (a *app) migrate(action string) error {
	store, err := a.openStore("migrate")
	if err != nil {
		return err
	}
	defer store.Close()

	switch action {
	case "up", "status":
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown migrate action %q (valid: up, down, status)", action)
	}
	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Schema version %d (dirty: %t)\n", v, dirty)
	return nil
}

func (a *app) simulate() error {
	cfg := simulate.DefaultConfig(a.opts.Simulate)
	cfg.NoiseStd = a.opts.Noise
	path, p, err := simulate.WriteFile(a.fsys, a.opts.Dir, a.opts.Simulate, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Simulated %d samples written to %s\n", p.Samples.Len(), path)

	for _, m := range estimator.Methods {
		recs, err := estimator.Run(p.Samples.Accel, p.Samples.DT, a.cfg.ToEstimator(m))
		if err != nil {
			return err
		}
		rmse, err := analysis.RMSE(estimator.Displacements(recs), p.Displacement)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%-16s displacement RMSE %.3f mm\n", m.Label(), rmse)
	}
	return nil
}

func (a *app) render(profiles []string) error {
	panels, err := chart.LoadPanels(a.fsys, profiles, a.loadOptions())
	if err != nil {
		return err
	}
	if a.opts.PNG != "" {
		if err := chart.RenderPNG(a.fsys, a.opts.PNG, panels); err != nil {
			return err
		}
	}
	if a.opts.HTML != "" {
		if err := chart.RenderHTML(a.fsys, a.opts.HTML, panels); err != nil {
			return err
		}
	}
	return nil
}
