package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/pipeperm/permuter"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"github.com/YuminosukeSato/pipeperm/pkg/log"
)

type runOptions struct {
	configPath  string
	dataPath    string
	target      string
	outPath     string
	metricsPath string
	jobs        int
	timeout     time.Duration
}

// newRootCmd builds the command tree. Output goes to cmd.OutOrStdout and
// logs to cmd.ErrOrStderr so tests can capture both.
func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "permuter",
		Short: "Evaluate every combination of pipeline step variants with nested cross-validation",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetupLoggerWithWriter(cmd.ErrOrStderr(), level)
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newRunCmd(), newListCmd())
	return root
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment file against a CSV dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}
			jobsSet := cmd.Flags().Changed("jobs")
			return runExperiment(ctx, cmd.OutOrStdout(), opts, jobsSet)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "experiment YAML file")
	f.StringVar(&opts.dataPath, "data", "", "numeric CSV with a header row")
	f.StringVar(&opts.target, "target", "", "name of the target column")
	f.StringVar(&opts.outPath, "out", "", "write the mean-score table as CSV to this file")
	f.StringVar(&opts.metricsPath, "metrics-out", "", "write prometheus metrics in text format to this file")
	f.IntVar(&opts.jobs, "jobs", 0, "concurrent units, overrides n_jobs (0: one per CPU)")
	f.DurationVar(&opts.timeout, "timeout", 0, "abort the run after this duration")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List estimator kinds usable in experiment files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, k := range DefaultRegistry().Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func runExperiment(ctx context.Context, out io.Writer, opts runOptions, jobsSet bool) error {
	logger := log.GetLoggerWithName("cli")

	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	data, err := LoadCSVFile(opts.dataPath, opts.target)
	if err != nil {
		return err
	}
	steps, params, search, err := cfg.Catalogs(DefaultRegistry())
	if err != nil {
		return err
	}

	jobs := cfg.NJobs
	if jobsSet {
		jobs = opts.jobs
	}
	reg := prometheus.NewRegistry()
	p, err := permuter.New(steps, params, search,
		permuter.WithSeed(cfg.Seed),
		permuter.WithNJobs(jobs),
		permuter.WithMetrics(reg),
	)
	if err != nil {
		return err
	}
	rows, _ := data.X.Dims()
	logger.Info("Experiment loaded",
		log.PipelinesKey, p.NumDefinitions(),
		log.SamplesKey, rows,
		log.FeaturesKey, len(data.Features),
		log.RandomSeedKey, cfg.Seed,
	)

	var fitOpts []permuter.FitOption
	if cfg.Scoring != "" {
		fitOpts = append(fitOpts, permuter.WithScoring(cfg.Scoring))
	}
	if err := p.Fit(ctx, data.X, data.Y, cfg.OuterCV.Splitter(), cfg.InnerCV.Splitter(), fitOpts...); err != nil {
		return err
	}

	if err := printReport(out, p); err != nil {
		return err
	}
	if opts.outPath != "" {
		if err := writeFile(opts.outPath, p.ExportMeanScoresCSV); err != nil {
			return err
		}
	}
	if opts.metricsPath != "" {
		if err := prometheus.WriteToTextfile(opts.metricsPath, reg); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return nil
}

func printReport(out io.Writer, p *permuter.Permuter) error {
	scoring, err := p.Scoring()
	if err != nil {
		return err
	}
	means, err := p.MeanScores()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "rank\tpipeline\tmean %s\tstd\tfailed folds\n", scoring)
	for _, m := range means {
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%.4f\t%d/%d\n", m.Rank, m.Pipeline, m.Mean, m.Std, m.NFailed, m.NFolds)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	best, err := p.BestPipeline()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nbest pipeline: %s (%.4f ± %.4f)\n", best.Pipeline, best.Mean, best.Std)

	hyper, err := p.BestHyperparameters()
	if err != nil {
		return err
	}
	for fold, params := range hyper[best.Index].Folds {
		fmt.Fprintf(out, "  fold %d: %s\n", fold, formatParams(params))
	}
	return nil
}

func formatParams(params map[string]interface{}) string {
	if params == nil {
		return "failed"
	}
	if len(params) == 0 {
		return "defaults"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return write(f)
}
