// cellanalyser classifies the variables and orders the equations of CellML
// models, reporting the result in TOON or YAML.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/cellanalyser/internal/analyser"
	"github.com/phobologic/cellanalyser/internal/cache"
	"github.com/phobologic/cellanalyser/internal/discover"
	"github.com/phobologic/cellanalyser/internal/format"
	"github.com/phobologic/cellanalyser/internal/graph"
	"github.com/phobologic/cellanalyser/internal/logger"
	"github.com/phobologic/cellanalyser/internal/ranking"
	"github.com/phobologic/cellanalyser/internal/report"
	"github.com/phobologic/cellanalyser/internal/toon"
)

var version = "dev"

const defaultMaxFileSize = 1_000_000 // 1 MB

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the resolved settings of one analysis run.
type options struct {
	output       string
	trees        bool
	variable     string
	maxEquations int
	formats      []string
	maxFileSize  int
	cachePath    string
	logLevel     string
	logFormat    string
	failOnIssues bool
	jobs         int
}

// cacheKey lists every option that changes the rendered output.
func (o *options) cacheKey() string {
	return fmt.Sprintf("version=%s output=%s trees=%t variable=%s max-equations=%d",
		version, o.output, o.trees, o.variable, o.maxEquations)
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// newRootCommand builds the command tree with its own viper instance, so
// flags, CELLANALYSER_* environment variables and an optional config file
// resolve in that order of precedence.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CELLANALYSER")
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	var configFile string

	cmd := &cobra.Command{
		Use:   "cellanalyser [flags] [path]",
		Short: "Classify variables and order equations of CellML models",
		Long: `cellanalyser analyses a model file, or every model file found under a
directory, and reports its type, variables, equations in evaluation order and
any issues that make it unsuitable for simulation.

Supported formats: CellML (.cellml, .xml) and YAML (.yaml, .yml).`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config: %w", err)
				}
			}
			opts := &options{
				output:       v.GetString("format"),
				trees:        v.GetBool("tree"),
				variable:     v.GetString("variable"),
				maxEquations: v.GetInt("max-equations"),
				formats:      v.GetStringSlice("formats"),
				maxFileSize:  v.GetInt("max-file-size"),
				cachePath:    v.GetString("cache"),
				logLevel:     v.GetString("log-level"),
				logFormat:    v.GetString("log-format"),
				failOnIssues: v.GetBool("fail-on-issues"),
				jobs:         v.GetInt("jobs"),
			}
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return analyse(root, opts, cmd.OutOrStdout(), stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("cellanalyser {{.Version}}\n")

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "read options from a YAML or TOML config file")
	flags.String("format", "toon", "output format: toon or yaml")
	flags.Bool("tree", false, "include the expression tree of every equation")
	flags.String("variable", "", "only report equations needed to compute variables matching this component.name substring")
	flags.IntP("max-equations", "n", 0, "maximum number of equations to include, highest rank first")
	flags.StringSliceP("formats", "f", nil, "comma-separated model formats to include when searching a directory")
	flags.Int("max-file-size", defaultMaxFileSize, "skip files larger than this many bytes")
	flags.String("cache", "", "cache file path")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.String("log-format", "console", "log format: console or json")
	flags.Bool("fail-on-issues", false, "exit with an error when any model reports issues")
	flags.IntP("jobs", "j", 0, "number of models analysed concurrently (0 uses every CPU)")
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name != "config" {
			mustBindPFlag(v, f.Name, cmd)
		}
	})

	cmd.AddCommand(newInitCommand(stdout, stderr))
	return cmd
}

func mustBindPFlag(v *viper.Viper, key string, cmd *cobra.Command) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
		panic(err)
	}
}

// analysedFile is the outcome for one model document.
type analysedFile struct {
	report  *report.Report
	encoded string
	err     error
}

func analyse(path string, opts *options, stdout, stderr io.Writer) error {
	log, err := logger.New(stderr, opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if opts.output != "toon" && opts.output != "yaml" {
		return fmt.Errorf("unsupported output format %q", opts.output)
	}
	for _, name := range opts.formats {
		if _, ok := format.Formats[name]; !ok {
			return fmt.Errorf("unsupported model format %q", name)
		}
	}

	root, files, err := findFiles(path, opts.formats)
	if err != nil {
		return err
	}

	files = filterBySize(root, files, opts.maxFileSize, log)
	if len(files) == 0 {
		return errors.New("no model files found (all exceeded size limit)")
	}

	// Read everything up front: the contents feed both the cache key and
	// the decoders.
	var readErr error
	inputs := make([]cache.Input, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(root, f.Path))
		if err != nil {
			readErr = multierr.Append(readErr, fmt.Errorf("reading %s: %w", f.Path, err))
			continue
		}
		inputs = append(inputs, cache.Input{Path: f.Path, Data: data})
	}

	key := cache.Key(opts.cacheKey(), inputs)
	// A cached run carries no report to check, so --fail-on-issues always
	// analyses.
	if opts.cachePath != "" && readErr == nil && !opts.failOnIssues {
		if output, ok := cache.Read(opts.cachePath, key); ok {
			log.Debug("Using cached output", zap.String("cache", opts.cachePath))
			_, _ = io.WriteString(stdout, output)
			return nil
		}
	}

	results := analyseConcurrent(inputs, opts, log)

	var (
		loadErr  error
		reports  []*report.Report
		sections []string
	)
	for i, res := range results {
		switch {
		case res.err != nil:
			loadErr = multierr.Append(loadErr, res.err)
		case res.report == nil:
			log.Debug("No equation matches variable", zap.String("path", inputs[i].Path), zap.String("variable", opts.variable))
		default:
			reports = append(reports, res.report)
			sections = append(sections, res.encoded)
		}
	}
	loadErr = multierr.Combine(readErr, loadErr)

	if opts.variable != "" && len(reports) == 0 && loadErr == nil {
		return fmt.Errorf("no equation computes a variable matching %q", opts.variable)
	}

	var out bytes.Buffer
	switch opts.output {
	case "yaml":
		if err := report.EncodeYAML(&out, reports...); err != nil {
			return err
		}
	default:
		if len(sections) > 0 {
			out.WriteString(strings.Join(sections, "\n\n"))
			out.WriteString("\n")
		}
	}
	_, _ = stdout.Write(out.Bytes())

	if loadErr != nil {
		return loadErr
	}

	if opts.cachePath != "" {
		if err := cache.Write(opts.cachePath, key, out.String()); err != nil {
			log.Warn("Failed to write cache", zap.String("cache", opts.cachePath), zap.Error(err))
		}
	}

	if opts.failOnIssues {
		var withIssues []string
		for _, r := range reports {
			if len(r.Issues) > 0 {
				withIssues = append(withIssues, r.Path)
			}
		}
		if len(withIssues) > 0 {
			return fmt.Errorf("issues reported for %s", strings.Join(withIssues, ", "))
		}
	}
	return nil
}

// findFiles resolves path to a root directory and the model files to analyse.
// A file path yields that file alone, whatever the format filter.
func findFiles(path string, formats []string) (string, []discover.FileEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("model path: %w", err)
	}

	if !info.IsDir() {
		name := format.ForExtension(filepath.Ext(abs))
		if name == "" {
			return "", nil, fmt.Errorf("%s: unsupported model format", path)
		}
		return filepath.Dir(abs), []discover.FileEntry{{Path: filepath.Base(abs), Format: name}}, nil
	}

	files, err := discover.Files(abs, formats)
	if err != nil {
		return "", nil, fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return "", nil, errors.New("no model files found")
	}
	return abs, files, nil
}

func filterBySize(root string, files []discover.FileEntry, maxSize int, log *zap.Logger) []discover.FileEntry {
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			kept = append(kept, f) // keep if can't stat; reading reports the error
			continue
		}
		if maxSize > 0 && fi.Size() > int64(maxSize) {
			log.Warn("Skipping large file",
				zap.String("path", f.Path),
				zap.String("size", humanize.Bytes(uint64(fi.Size()))),
				zap.String("limit", humanize.Bytes(uint64(maxSize))))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// analyseConcurrent decodes, analyses and encodes every input, at most
// opts.jobs at a time. Results keep the order of inputs.
func analyseConcurrent(inputs []cache.Input, opts *options, log *zap.Logger) []analysedFile {
	jobs := opts.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]analysedFile, len(inputs))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			results[i] = analyseFile(in, opts, log.With(zap.String("path", in.Path)))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func analyseFile(in cache.Input, opts *options, log *zap.Logger) analysedFile {
	m, err := format.DecodeFile(in.Path, in.Data)
	if err != nil {
		return analysedFile{err: err}
	}

	res := analyser.New(analyser.WithLogger(log)).Analyse(m)
	if err := graph.CheckOrder(res); err != nil {
		log.Error("Equation order is inconsistent", zap.Error(err))
	}
	r := report.Build(filepath.ToSlash(in.Path), m, res, report.Options{Trees: opts.trees})
	log.Debug("Analysed model",
		zap.String("model", m.Name),
		zap.String("type", res.Type.String()),
		zap.Int("equations", len(res.Equations)),
		zap.Int("issues", len(res.Issues)))

	if opts.variable != "" {
		r, err = ranking.FilterByVariable(r, opts.variable)
		if err != nil {
			return analysedFile{}
		}
	}
	r = ranking.SelectEquations(r, opts.maxEquations)

	out := analysedFile{report: r}
	if opts.output == "toon" {
		out.encoded = toon.Encode(r)
	}
	return out
}
