package config

import (
	"github.com/BurntSushi/toml"

	"github.com/uflsim/engine/internal/engerr"
)

// tomlOverride mirrors the subset of Args a --config file may override,
// layered under the already-parsed CLI flags the way the teacher's
// econfig.Config applies config-file values beneath flag values.
type tomlOverride struct {
	Script  string
	Output  string
	Port    int
	Host    string
	File    bool
	Socket  bool
	BDT     bool
	SMR     bool
	Wave    bool
	Condi   bool
	Debug   bool
	NoNoise bool
}

// ApplyConfigFile loads a.ConfigFile (if set) and fills in any field still
// at its flag.NewFlagSet default, without clobbering anything the user
// explicitly passed on the command line. explicit names the flags the
// caller saw passed (collected with flag.Visit), matching the teacher's
// "config files are read, then command-line args are processed" layering —
// here simplified to: an explicitly passed flag always wins, else a
// non-zero config file value is used.
func ApplyConfigFile(a *Args, explicit map[string]bool) error {
	if a.ConfigFile == "" {
		return nil
	}
	var ov tomlOverride
	if _, err := toml.DecodeFile(a.ConfigFile, &ov); err != nil {
		return engerr.Config("config.ApplyConfigFile", err)
	}
	setIfNotExplicit := func(name string, dst *string, src string) {
		if !explicit[name] && src != "" {
			*dst = src
		}
	}
	setIfNotExplicit("script", &a.Script, ov.Script)
	setIfNotExplicit("output", &a.Output, ov.Output)
	setIfNotExplicit("host", &a.Host, ov.Host)
	if !explicit["port"] && ov.Port != 0 {
		a.Port = ov.Port
	}
	if !explicit["file"] && ov.File {
		a.File = ov.File
	}
	if !explicit["socket"] && ov.Socket {
		a.Socket = ov.Socket
	}
	if !explicit["bdt"] && ov.BDT {
		a.BDT = ov.BDT
	}
	if !explicit["smr"] && ov.SMR {
		a.SMR = ov.SMR
	}
	if !explicit["wave"] && ov.Wave {
		a.Wave = ov.Wave
	}
	if !explicit["condi"] && ov.Condi {
		a.Condi = ov.Condi
	}
	if !explicit["debug"] && ov.Debug {
		a.Debug = ov.Debug
	}
	if !explicit["nonoise"] && ov.NoNoise {
		a.NoNoise = ov.NoNoise
	}
	return nil
}
