package config

import (
	"flag"
)

// Args is the CLI surface spec.md §6 defines, grounded on the teacher's
// ecmd.Args map-of-typed-flags shape laid directly over the standard
// library flag package (the teacher itself never swaps flag out for a
// third-party CLI library for this purpose, so neither do we).
type Args struct {
	Script   string
	Output   string
	Port     int
	Host     string
	File     bool
	Socket   bool
	BDT      bool
	SMR      bool
	Wave     bool
	Condi    bool
	Debug    bool
	NoNoise  bool
	ConfigFile string

	explicit map[string]bool
}

// Parse parses argv (excluding the program name) into an Args, following
// the flag set spec.md §6 "CLI surface" enumerates.
func Parse(argv []string) (*Args, error) {
	fs := flag.NewFlagSet("uflsim-engine", flag.ContinueOnError)
	a := &Args{}
	fs.StringVar(&a.Script, "script", "", "path to the run script")
	fs.StringVar(&a.Output, "output", ".", "output directory")
	fs.IntVar(&a.Port, "port", 0, "viewer socket port")
	fs.StringVar(&a.Host, "host", "localhost", "viewer host")
	fs.BoolVar(&a.File, "file", false, "write plot blocks as numbered files")
	fs.BoolVar(&a.Socket, "socket", false, "stream to a connected viewer")
	fs.BoolVar(&a.BDT, "bdt", false, "write event table output")
	fs.BoolVar(&a.SMR, "smr", false, "write spike archive")
	fs.BoolVar(&a.Wave, "wave", false, "write waveform archive")
	fs.BoolVar(&a.Condi, "condi", false, "dump convergence/divergence CSVs before starting")
	fs.BoolVar(&a.Debug, "debug", false, "enable debug logging")
	fs.BoolVar(&a.NoNoise, "nonoise", false, "disable membrane noise")
	fs.StringVar(&a.ConfigFile, "config", "", "optional TOML file overriding these flags")
	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	a.explicit = explicit
	return a, nil
}

// Explicit reports whether flag name was passed on the command line, as
// opposed to left at its default — used to decide whether a --config file
// value should override it.
func (a *Args) Explicit() map[string]bool { return a.explicit }
