package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"geodash/internal/config"
	"geodash/internal/dataprocessing"
	"geodash/internal/exporter"
	"geodash/internal/infrastructure"
	"geodash/internal/validation"
	"geodash/pkg/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run prepares one specimen file and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("prepare", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "specimen file to prepare (.csv, .xls or .xlsx)")
	out := fs.String("out", "", "output file; .xlsx writes a workbook (defaults to <in>_prepared.csv)")
	categories := fs.String("categories", "", "optional path for the category list as JSON")
	configFile := fs.String("config", "", "optional YAML config file")
	bom := fs.Bool("bom", true, "prefix CSV output with a UTF-8 byte order mark")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}
	if *in == "" {
		fmt.Fprintln(stderr, "prepare: -in is required")
		fs.Usage()
		return 2
	}
	if *out == "" {
		*out = strings.TrimSuffix(*in, filepath.Ext(*in)) + "_prepared.csv"
	}

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "prepare: %v\n", err)
		return 2
	}
	cfg.Logging.Output = "stderr"
	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "prepare: %v\n", err)
		return 2
	}

	logger.Info("Preparing specimen file",
		slog.String("input", *in),
		slog.String("output", *out))

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateInputFile(*in, cfg.Upload.MaxBytes); err != nil {
		return fail(stderr, logger, err)
	}
	if err := validator.ValidateOutputFile(*out); err != nil {
		return fail(stderr, logger, err)
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		logger.Error("Failed to read input", slog.String("error", err.Error()))
		return 1
	}

	table, err := dataprocessing.Decode(filepath.Base(*in), data)
	if err != nil {
		return fail(stderr, logger, err)
	}

	pipeline := dataprocessing.NewPipeline(dataprocessing.OptionsFromConfig(cfg.Pipeline), logger, nil)
	result, err := pipeline.Run(ctx, table)
	if err != nil {
		return fail(stderr, logger, err)
	}

	if err := exporter.WriteFile(*out, result.Dataset, exporter.WriteOptions{BOMPrefix: *bom, Logger: logger}); err != nil {
		logger.Error("Failed to write output", slog.String("error", err.Error()))
		return 1
	}

	if *categories != "" {
		if err := writeCategories(*categories, result); err != nil {
			logger.Error("Failed to write categories", slog.String("error", err.Error()))
			return 1
		}
	}

	fmt.Fprintf(stdout, "%d records prepared (%d without valid coordinates) -> %s\n",
		result.Stats.Records, result.Stats.SentinelLocations, *out)
	return 0
}

// fail prints the uploader-facing message for pipeline errors
func fail(stderr io.Writer, logger *slog.Logger, err error) int {
	var pErr *dataprocessing.PipelineError
	if errors.As(err, &pErr) {
		fmt.Fprintln(stderr, pErr.UserMessage())
	} else {
		fmt.Fprintf(stderr, "prepare: %v\n", err)
	}
	logger.Error("Preparation failed", slog.String("error", err.Error()))
	return 1
}

func writeCategories(path string, result *dataprocessing.Result) error {
	data, err := json.MarshalIndent(result.Categories, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
