package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

// outputFormat is a pflag.Value restricted to the supported render modes.
type outputFormat string

const (
	outputJSON    outputFormat = "json"
	outputTable   outputFormat = "table"
	outputSummary outputFormat = "summary"
)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(v string) error {
	switch outputFormat(v) {
	case outputJSON, outputTable, outputSummary:
		*f = outputFormat(v)
		return nil
	}
	return fmt.Errorf("invalid output format %q (json|table|summary)", v)
}

func (f *outputFormat) Type() string { return "format" }

// registerOutput adds the shared --output flag with the given default.
func registerOutput(fs *pflag.FlagSet, def outputFormat) {
	f := def
	fs.Var(&f, "output", "Output format (json|table|summary)")
}

// outputOf reads the parsed --output value from a command's flag set.
func outputOf(fs *pflag.FlagSet) outputFormat {
	if fl := fs.Lookup("output"); fl != nil {
		if v, ok := fl.Value.(*outputFormat); ok {
			return *v
		}
	}
	return outputJSON
}
