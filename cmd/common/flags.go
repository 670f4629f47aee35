// Package common holds the flag, environment and process plumbing shared by the CLIs.
package common

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// CommonFlags contains flags that are shared across multiple commands
type CommonFlags struct {
	EnvFile     *string
	DataRoot    *string
	OutputDir   *string
	ConsoleOnly *bool
	MetricsAddr *string

	LogLevel *string
	Verbose  *bool
	Silent   *bool

	Version *bool
}

// RegisterCommonFlags registers common flags on fs, the default flag set when nil.
func RegisterCommonFlags(fs *flag.FlagSet) *CommonFlags {
	if fs == nil {
		fs = flag.CommandLine
	}
	return &CommonFlags{
		EnvFile:     fs.String("env", ".env", "Environment file path"),
		DataRoot:    fs.String("data-root", "", "Data root directory (overrides DATA_ROOT)"),
		OutputDir:   fs.String("out", "", "Output directory (default results/SYMBOL_interval)"),
		ConsoleOnly: fs.Bool("console-only", false, "Console output only (no file output)"),
		MetricsAddr: fs.String("metrics", "", "Serve /metrics and /health on this address, e.g. :9090"),

		LogLevel: fs.String("log-level", "", "Log level (overrides LOG_LEVEL)"),
		Verbose:  fs.Bool("verbose", false, "Shortcut for -log-level debug"),
		Silent:   fs.Bool("silent", false, "Only log warnings and errors"),

		Version: fs.Bool("version", false, "Show version information"),
	}
}

// Level resolves the effective log level; flags win over the environment value.
func (f *CommonFlags) Level(envLevel string) string {
	switch {
	case *f.Silent:
		return "warn"
	case *f.Verbose:
		return "debug"
	case *f.LogLevel != "":
		return *f.LogLevel
	}
	return envLevel
}

// FlagValidator collects flag errors so they can be reported together.
type FlagValidator struct {
	errors []string
}

func NewFlagValidator() *FlagValidator {
	return &FlagValidator{errors: make([]string, 0)}
}

// ValidateChoice validates that a string is one of the allowed choices
func (v *FlagValidator) ValidateChoice(name, value string, choices []string) *FlagValidator {
	for _, choice := range choices {
		if value == choice {
			return v
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of [%s], got: %s", name, strings.Join(choices, ", "), value))
	return v
}

// ValidateFile validates that a file exists
func (v *FlagValidator) ValidateFile(name, path string, required bool) *FlagValidator {
	if path == "" {
		if required {
			v.errors = append(v.errors, fmt.Sprintf("%s is required", name))
		}
		return v
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		v.errors = append(v.errors, fmt.Sprintf("%s file does not exist: %s", name, path))
	}
	return v
}

func (v *FlagValidator) AddError(message string) *FlagValidator {
	v.errors = append(v.errors, message)
	return v
}

func (v *FlagValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// GetError joins all collected errors, nil when there are none.
func (v *FlagValidator) GetError() error {
	if !v.HasErrors() {
		return nil
	}
	if len(v.errors) == 1 {
		return fmt.Errorf("validation error: %s", v.errors[0])
	}
	return fmt.Errorf("validation errors:\n  - %s", strings.Join(v.errors, "\n  - "))
}

// UsageFormatter prints a usage block with examples ahead of the flag defaults.
type UsageFormatter struct {
	appName     string
	description string
	examples    []UsageExample
}

type UsageExample struct {
	Command     string
	Description string
}

func NewUsageFormatter(appName, description string) *UsageFormatter {
	return &UsageFormatter{appName: appName, description: description}
}

func (u *UsageFormatter) AddExample(command, description string) *UsageFormatter {
	u.examples = append(u.examples, UsageExample{Command: command, Description: description})
	return u
}

// Install sets fs.Usage to print the formatted block.
func (u *UsageFormatter) Install(fs *flag.FlagSet) {
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "%s - %s\n\nUsage:\n  %s [flags]\n\nFlags:\n", u.appName, u.description, u.appName)
		fs.PrintDefaults()
		if len(u.examples) > 0 {
			fmt.Fprintf(out, "\nExamples:\n")
			for _, ex := range u.examples {
				fmt.Fprintf(out, "  # %s\n  %s\n\n", ex.Description, ex.Command)
			}
		}
	}
}
