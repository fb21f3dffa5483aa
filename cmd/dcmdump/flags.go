package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
)

// CLIConfig holds command line configuration
type CLIConfig struct {
	Files []string

	// Raw 输入没有preamble和file meta group, 只有data set
	Raw            bool
	ExplicitVR     bool
	BigEndian      bool
	TransferSyntax string

	StopTag string
	Tags    string
	Query   string

	// ChunkSize > 0 时通过BufferSource分块喂数据, 解析在喂数据的goroutine上继续
	ChunkSize   int
	Jobs        int
	PrivateDict string

	Verbosity   int
	LogFormat   string
	ShowMetrics bool
	ShowVersion bool
	ShowHelp    bool
}

// parseFlags parses command line flags and returns configuration
func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.BoolVar(&cfg.Raw, "raw",
		getEnvBool("DCMDUMP_RAW", false),
		"Input is a bare data set without preamble and file meta group (env: DCMDUMP_RAW)")

	flag.BoolVar(&cfg.ExplicitVR, "explicit",
		getEnvBool("DCMDUMP_EXPLICIT", true),
		"Decode explicit VR when -raw is set (env: DCMDUMP_EXPLICIT)")

	flag.BoolVar(&cfg.BigEndian, "big-endian",
		getEnvBool("DCMDUMP_BIG_ENDIAN", false),
		"Decode big endian when -raw is set (env: DCMDUMP_BIG_ENDIAN)")

	flag.StringVar(&cfg.TransferSyntax, "ts",
		getEnv("DCMDUMP_TS", ""),
		"Transfer syntax UID of a -raw input, overrides -explicit and -big-endian (env: DCMDUMP_TS)")

	flag.StringVar(&cfg.StopTag, "stop",
		getEnv("DCMDUMP_STOP", ""),
		"Stop before the first tag >= this one, e.g. (7fe0,0010) (env: DCMDUMP_STOP)")

	flag.StringVar(&cfg.Tags, "tags",
		getEnv("DCMDUMP_TAGS", ""),
		"Comma separated glob patterns of tags or keywords to print, e.g. 'Patient*,(0008,*)'; commas inside (gggg,eeee) do not split (env: DCMDUMP_TAGS)")

	flag.StringVar(&cfg.Query, "query",
		getEnv("DCMDUMP_QUERY", ""),
		"Only print files matching KEY=PATTERN, e.g. PatientName=Zhang* (env: DCMDUMP_QUERY)")

	flag.IntVar(&cfg.ChunkSize, "chunk",
		getEnvInt("DCMDUMP_CHUNK", 0),
		"Feed input in chunks of this many bytes through an incremental source, 0 disables (env: DCMDUMP_CHUNK)")

	flag.IntVar(&cfg.Jobs, "jobs",
		getEnvInt("DCMDUMP_JOBS", 4),
		"Number of files parsed in parallel (env: DCMDUMP_JOBS)")

	flag.StringVar(&cfg.PrivateDict, "private-dict",
		getEnv("DCMDUMP_PRIVATE_DICT", ""),
		"YAML file with private creator dictionaries (env: DCMDUMP_PRIVATE_DICT)")

	flag.IntVar(&cfg.Verbosity, "v",
		getEnvInt("DCMDUMP_VERBOSITY", 0),
		"Parser log verbosity, -1 disables logging (env: DCMDUMP_VERBOSITY)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("DCMDUMP_LOG_FORMAT", "text"),
		"Log format: text or json (env: DCMDUMP_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowMetrics, "metrics",
		getEnvBool("DCMDUMP_METRICS", false),
		"Print reader counters after all files (env: DCMDUMP_METRICS)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show detailed help")

	flag.Usage = printDetailedHelp
	flag.Parse()

	cfg.Files = flag.Args()
	if len(cfg.Files) == 0 {
		cfg.Files = []string{"-"}
	}
	return cfg
}

// printDetailedHelp prints comprehensive help information
func printDetailedHelp() {
	fmt.Fprintf(os.Stderr, `%s - streaming DICOM data set dump

USAGE:
    %s [OPTIONS] [FILE...]

    Reads standard input when no file, or "-", is given.

OPTIONS:
`, appName, appName)

	flag.PrintDefaults()

	fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Dump a Part 10 file
    %s image.dcm

    # Header only, stop before pixel data
    %s -stop '(7fe0,0010)' image.dcm

    # Bare implicit VR little endian data set from a pipe, fed in 1 KiB chunks
    cat dataset.bin | %s -raw -ts 1.2.840.10008.1.2 -chunk 1024

    # Patient module of every CT of one patient
    %s -tags 'Patient*' -query 'Modality=CT' *.dcm
`, appName, appName, appName, appName)
}

// validateFlags validates the parsed configuration
func validateFlags(cfg *CLIConfig) error {
	if cfg.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", cfg.Jobs)
	}
	if cfg.ChunkSize < 0 {
		return fmt.Errorf("chunk must not be negative, got %d", cfg.ChunkSize)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", cfg.LogFormat)
	}
	if cfg.StopTag != "" {
		if _, err := dicomtag.ParseTag(cfg.StopTag); err != nil {
			return fmt.Errorf("invalid stop tag: %w", err)
		}
	}
	if cfg.TransferSyntax != "" {
		if !cfg.Raw {
			return fmt.Errorf("-ts only applies to -raw input")
		}
		if _, _, err := dicomio.ParseTransferSyntaxUID(cfg.TransferSyntax); err != nil {
			return fmt.Errorf("invalid transfer syntax: %w", err)
		}
	}
	stdin := 0
	for _, f := range cfg.Files {
		if f == "-" {
			stdin++
		}
	}
	if stdin > 1 {
		return fmt.Errorf("standard input given %d times", stdin)
	}
	return nil
}

// tagPatterns splits the -tags list at commas outside parentheses, so
// "(0028,*)" stays one pattern.
func (cfg *CLIConfig) tagPatterns() []string {
	var out []string
	add := func(p string) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	depth, start := 0, 0
	for i, c := range cfg.Tags {
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				add(cfg.Tags[start:i])
				start = i + 1
			}
		}
	}
	add(cfg.Tags[start:])
	return out
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets boolean environment variable with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt gets integer environment variable with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
