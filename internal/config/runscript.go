// Package config implements the parameter-loader half of spec.md §4.A that
// deals with run scripts and CLI flags (the network-description side lives
// in internal/netdesc). The CLI arg handling is grounded on the teacher's
// ecmd.Args: a small map of typed named flags layered over the standard
// library's flag package, plus an optional --config TOML override file
// grounded on the teacher's econfig.Config layering idea.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/uflsim/engine/internal/engerr"
)

// PlotChannel is one "pop,cell,variable[,type[,scale,spike]],label" line of
// the run script's plot-channel list (spec.md §6).
type PlotChannel struct {
	Pop      int
	Cell     int
	Variable int
	Type     string
	Scale    float64
	Spike    bool
	Label    string
}

// SpikeChannel is one "C|F pop,cell" line of the spike-channel list
// (spec.md §6).
type SpikeChannel struct {
	IsFiber bool
	Pop     int
	Cell    int
}

// RunScript is the fully parsed run script (spec.md §6).
type RunScript struct {
	DescriptionFile string
	UpdateInterval  int // ticks; 0 = never
	PlotEnabled     bool
	SpawnNumber     int
	PlotChannels    []PlotChannel

	SaveSpikeTable bool
	SaveSpikeArch  bool
	SaveWaveArch   bool

	AnalogEnabled bool
	AnalogPop     int
	AnalogScale   float64
	AnalogDecay   float64
	AnalogMax     int
	AnalogExtra   float64

	SpikeTableFile string
	SpikeChannels  []SpikeChannel
}

// ParseRunScript reads the sequential text run-script format spec.md §6
// defines.
func ParseRunScript(r io.Reader) (*RunScript, error) {
	sc := bufio.NewScanner(r)
	lines := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}

	rs := &RunScript{}

	descFile, ok := lines()
	if !ok {
		return nil, engerr.Config("config.ParseRunScript", fmt.Errorf("missing description filename line"))
	}
	rs.DescriptionFile = strings.TrimSpace(descFile)

	updateLine, ok := lines()
	if !ok {
		return nil, engerr.Config("config.ParseRunScript", fmt.Errorf("missing update interval line"))
	}
	interval, err := strconv.Atoi(strings.TrimSpace(updateLine))
	if err != nil {
		return nil, engerr.Config("config.ParseRunScript", fmt.Errorf("update interval: %w", err))
	}
	rs.UpdateInterval = interval

	plotFlag, ok := lines()
	if !ok {
		return nil, engerr.Config("config.ParseRunScript", fmt.Errorf("missing plot-enable line"))
	}
	rs.PlotEnabled = strings.TrimSpace(plotFlag) == "E"

	if rs.PlotEnabled {
		spawnLine, ok := lines()
		if !ok {
			return nil, engerr.Config("config.ParseRunScript", fmt.Errorf("missing spawn number line"))
		}
		spawn, err := strconv.Atoi(strings.TrimSpace(spawnLine))
		if err != nil {
			return nil, engerr.Config("config.ParseRunScript", fmt.Errorf("spawn number: %w", err))
		}
		rs.SpawnNumber = spawn

		for {
			line, ok := lines()
			if !ok || strings.TrimSpace(line) == "" {
				break
			}
			pc, perr := parsePlotChannel(line)
			if perr != nil {
				return nil, engerr.Config("config.ParseRunScript", perr)
			}
			rs.PlotChannels = append(rs.PlotChannels, pc)
		}
	}

	yn := func(label string) (bool, error) {
		line, ok := lines()
		if !ok {
			return false, fmt.Errorf("missing %s Y/N line", label)
		}
		return strings.EqualFold(strings.TrimSpace(line), "Y"), nil
	}

	var err2 error
	if rs.SaveSpikeTable, err2 = yn("save_spike_table"); err2 != nil {
		return nil, engerr.Config("config.ParseRunScript", err2)
	}
	if rs.SaveSpikeArch, err2 = yn("save_spike_archive"); err2 != nil {
		return nil, engerr.Config("config.ParseRunScript", err2)
	}
	if rs.SaveWaveArch, err2 = yn("save_wave_archive"); err2 != nil {
		return nil, engerr.Config("config.ParseRunScript", err2)
	}

	if rs.SaveSpikeTable || rs.SaveSpikeArch || rs.SaveWaveArch {
		analog, aerr := yn("analog_pool_enable")
		if aerr != nil {
			return nil, engerr.Config("config.ParseRunScript", aerr)
		}
		rs.AnalogEnabled = analog
		if rs.AnalogEnabled {
			popLine, _ := lines()
			scaleLine, _ := lines()
			decayLine, _ := lines()
			maxLine, _ := lines()
			extraLine, _ := lines()
			rs.AnalogPop = atoiSafe(popLine)
			rs.AnalogScale = atofSafe(scaleLine)
			rs.AnalogDecay = atofSafe(decayLine)
			rs.AnalogMax = atoiSafe(maxLine)
			rs.AnalogExtra = atofSafe(extraLine)
		}

		spikeFile, ok := lines()
		if !ok {
			return nil, engerr.Config("config.ParseRunScript", fmt.Errorf("missing spike table filename"))
		}
		rs.SpikeTableFile = strings.TrimSpace(spikeFile)

		for {
			line, ok := lines()
			if !ok || strings.TrimSpace(line) == "" {
				break
			}
			sch, serr := parseSpikeChannel(line)
			if serr != nil {
				return nil, engerr.Config("config.ParseRunScript", serr)
			}
			rs.SpikeChannels = append(rs.SpikeChannels, sch)
		}
	}

	return rs, nil
}

func parsePlotChannel(line string) (PlotChannel, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return PlotChannel{}, fmt.Errorf("malformed plot channel line: %q", line)
	}
	pop, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return PlotChannel{}, fmt.Errorf("plot channel pop: %w", err)
	}
	cell, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return PlotChannel{}, fmt.Errorf("plot channel cell: %w", err)
	}
	variable, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return PlotChannel{}, fmt.Errorf("plot channel variable: %w", err)
	}
	pc := PlotChannel{Pop: pop, Cell: cell, Variable: variable}
	// Remaining optional fields: type, scale, spike, label — label is
	// always last and may itself contain no commas; everything between
	// the required prefix and the label is optional.
	rest := parts[3:]
	if len(rest) == 0 {
		return pc, nil
	}
	pc.Label = strings.TrimSpace(rest[len(rest)-1])
	opt := rest[:len(rest)-1]
	if len(opt) > 0 {
		pc.Type = strings.TrimSpace(opt[0])
	}
	if len(opt) > 1 {
		pc.Scale = atofSafe(opt[1])
	}
	if len(opt) > 2 {
		pc.Spike = strings.EqualFold(strings.TrimSpace(opt[2]), "Y")
	}
	return pc, nil
}

func parseSpikeChannel(line string) (SpikeChannel, error) {
	line = strings.TrimSpace(line)
	if len(line) < 2 {
		return SpikeChannel{}, fmt.Errorf("malformed spike channel line: %q", line)
	}
	kind := line[0]
	rest := strings.TrimSpace(line[1:])
	parts := strings.Split(rest, ",")
	if len(parts) != 2 {
		return SpikeChannel{}, fmt.Errorf("malformed spike channel line: %q", line)
	}
	pop, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return SpikeChannel{}, fmt.Errorf("spike channel pop: %w", err)
	}
	cell, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return SpikeChannel{}, fmt.Errorf("spike channel cell: %w", err)
	}
	return SpikeChannel{IsFiber: kind == 'F', Pop: pop, Cell: cell}, nil
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atofSafe(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
