package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel    string
	LogFormat   string
	LogFile     string
	DebugSpray  bool
	DebugCamera bool
	DebugPDM    bool
	DebugCAN    bool
	DebugAll    bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	// Debug category flags
	fs.BoolVar(&f.DebugSpray, "debug-spray", false,
		"Enable spray-queue debugging (fire times, partitioning, heartbeat)")
	fs.BoolVar(&f.DebugCamera, "debug-camera", false,
		"Enable camera capture-loop debugging (trigger, buffer pop, restart)")
	fs.BoolVar(&f.DebugPDM, "debug-pdm", false,
		"Enable PDM actuation debugging (channel/function config, actuate calls)")
	fs.BoolVar(&f.DebugCAN, "debug-can", false,
		"Enable raw CAN frame debugging")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	// Parse log level
	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	// Parse format
	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	// Set output file
	cfg.OutputFile = f.LogFile

	// Enable debug categories
	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		// Force debug level when any debug category is enabled
		cfg.Level = LevelDebug
	} else {
		if f.DebugSpray {
			cfg.EnableCategory(DebugSpray)
			cfg.Level = LevelDebug
		}
		if f.DebugCamera {
			cfg.EnableCategory(DebugCamera)
			cfg.Level = LevelDebug
		}
		if f.DebugPDM {
			cfg.EnableCategory(DebugPDM)
			cfg.Level = LevelDebug
		}
		if f.DebugCAN {
			cfg.EnableCategory(DebugCAN)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./spray -f config/power.yaml

  Enable DEBUG level:
    ./spray -f config/power.yaml --log-level debug
    ./spray -f config/power.yaml -l debug

  Log to file:
    ./spray -f config/power.yaml --log-file spray.log
    ./spray -f config/power.yaml -o spray.log

  JSON format for structured logging:
    ./spray -f config/power.yaml --log-format json -o spray.json

  Debug spray-queue firing only:
    ./spray -f config/power.yaml --debug-spray

  Debug PDM actuation only:
    ./spray -f config/power.yaml --debug-pdm

  Debug multiple categories:
    ./camera-array -f config/camera_array.yaml --debug-camera --debug-can

  Debug everything:
    ./spray -f config/power.yaml --debug-all -o debug.log

  Production logging (WARN level, JSON to file):
    ./spray -f config/power.yaml -l warn --log-format json -o production.log
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		if f.DebugSpray {
			debugCategories = append(debugCategories, "spray")
		}
		if f.DebugCamera {
			debugCategories = append(debugCategories, "camera")
		}
		if f.DebugPDM {
			debugCategories = append(debugCategories, "pdm")
		}
		if f.DebugCAN {
			debugCategories = append(debugCategories, "can")
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}
