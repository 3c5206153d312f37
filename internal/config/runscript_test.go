package config

import (
	"strings"
	"testing"
)

func TestParseRunScriptNoPlotNoSave(t *testing.T) {
	src := "net.desc\n0\n\nN\nN\nN\n"
	rs, err := ParseRunScript(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if rs.DescriptionFile != "net.desc" {
		t.Fatalf("expected net.desc, got %q", rs.DescriptionFile)
	}
	if rs.PlotEnabled {
		t.Fatal("expected plot disabled")
	}
	if rs.SaveSpikeTable || rs.SaveSpikeArch || rs.SaveWaveArch {
		t.Fatal("expected no saves enabled")
	}
}

func TestParseRunScriptWithPlotChannels(t *testing.T) {
	src := strings.Join([]string{
		"net.desc",
		"100",
		"E",
		"1",
		"1,0,1,,1.0,N,label1",
		"2,3,4,,,Y,label2",
		"",
		"N", "N", "N",
	}, "\n") + "\n"
	rs, err := ParseRunScript(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if !rs.PlotEnabled || rs.SpawnNumber != 1 {
		t.Fatalf("expected plot enabled with spawn 1, got %+v", rs)
	}
	if len(rs.PlotChannels) != 2 {
		t.Fatalf("expected 2 plot channels, got %d", len(rs.PlotChannels))
	}
	pc0 := rs.PlotChannels[0]
	if pc0.Pop != 1 || pc0.Cell != 0 || pc0.Variable != 1 || pc0.Label != "label1" {
		t.Fatalf("unexpected first plot channel: %+v", pc0)
	}
	if pc0.Scale != 1.0 {
		t.Fatalf("expected scale 1.0, got %v", pc0.Scale)
	}
	pc1 := rs.PlotChannels[1]
	if pc1.Pop != 2 || pc1.Cell != 3 || pc1.Variable != 4 || pc1.Label != "label2" || !pc1.Spike {
		t.Fatalf("unexpected second plot channel: %+v", pc1)
	}
}

func TestParseRunScriptWithAnalogAndSpikeChannels(t *testing.T) {
	src := strings.Join([]string{
		"net.desc",
		"0",
		"",
		"Y", "N", "N",
		"Y",
		"3", "0.5", "10", "4095", "0",
		"spikes.out",
		"C1,0",
		"F2,1",
		"",
	}, "\n") + "\n"
	rs, err := ParseRunScript(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if !rs.SaveSpikeTable {
		t.Fatal("expected save_spike_table == Y")
	}
	if !rs.AnalogEnabled || rs.AnalogPop != 3 || rs.AnalogScale != 0.5 || rs.AnalogMax != 4095 {
		t.Fatalf("unexpected analog params: %+v", rs)
	}
	if rs.SpikeTableFile != "spikes.out" {
		t.Fatalf("unexpected spike table file: %q", rs.SpikeTableFile)
	}
	if len(rs.SpikeChannels) != 2 {
		t.Fatalf("expected 2 spike channels, got %d", len(rs.SpikeChannels))
	}
	if rs.SpikeChannels[0].IsFiber || rs.SpikeChannels[0].Pop != 1 || rs.SpikeChannels[0].Cell != 0 {
		t.Fatalf("unexpected first spike channel: %+v", rs.SpikeChannels[0])
	}
	if !rs.SpikeChannels[1].IsFiber || rs.SpikeChannels[1].Pop != 2 || rs.SpikeChannels[1].Cell != 1 {
		t.Fatalf("unexpected second spike channel: %+v", rs.SpikeChannels[1])
	}
}

func TestParseRunScriptMissingDescriptionLine(t *testing.T) {
	if _, err := ParseRunScript(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty run script")
	}
}
