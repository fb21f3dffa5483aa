// Package main implements dcmdump, a command line dump of DICOM files built
// on the streaming reader.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	dicom "github.com/odincare/dcmstream"
	"github.com/odincare/dcmstream/dicomlog"
	"github.com/odincare/dcmstream/dicomtag"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "dcmdump"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		logrus.WithError(err).Error("dcmdump failed")
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()
	if cfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if cfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if err := validateFlags(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(cfg)
	dicomlog.SetLevel(cfg.Verbosity)

	if cfg.PrivateDict != "" {
		if err := loadPrivateDictionary(cfg.PrivateDict); err != nil {
			return err
		}
		logger.WithField("path", cfg.PrivateDict).Debug("private dictionary loaded")
	}

	reg := prometheus.NewRegistry()
	metrics, err := dicom.NewReaderMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	d, err := newDumper(cfg, logger, metrics, os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	failed := d.dumpAll(ctx, cfg.Files)

	if cfg.ShowMetrics {
		if err := printMetrics(os.Stderr, reg); err != nil {
			logger.WithError(err).Warn("gather metrics")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(cfg.Files))
	}
	return nil
}

// setupLogger configures the standard logrus logger, which the parser's
// package level logging writes to as well.
func setupLogger(cfg *CLIConfig) *logrus.Entry {
	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stderr)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Verbosity >= 2 {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(logger).WithField("app", appName)
}

func loadPrivateDictionary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open private dictionary: %w", err)
	}
	defer f.Close()
	return dicomtag.DefaultDictionary().LoadPrivateDictionary(f)
}

// printMetrics writes every collected series as "name{labels} value".
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				if labels != "" {
					labels += ","
				}
				labels += fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
			}
			if labels != "" {
				labels = "{" + labels + "}"
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s_count%s %d\n", mf.GetName(), labels, h.GetSampleCount())
				fmt.Fprintf(w, "%s_sum%s %g\n", mf.GetName(), labels, h.GetSampleSum())
			}
		}
	}
	return nil
}
