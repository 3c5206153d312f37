package config

import "testing"

func TestParseDefaults(t *testing.T) {
	a, err := Parse([]string{"--script", "run.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Script != "run.txt" {
		t.Fatalf("expected script run.txt, got %q", a.Script)
	}
	if a.Output != "." {
		t.Fatalf("expected default output '.', got %q", a.Output)
	}
	if a.Explicit()["output"] {
		t.Fatal("output should not be marked explicit when left at default")
	}
	if !a.Explicit()["script"] {
		t.Fatal("script should be marked explicit")
	}
}

func TestParseFlagsBoolSurface(t *testing.T) {
	a, err := Parse([]string{"--script", "r.txt", "--socket", "--bdt", "--nonoise", "--port", "9000"})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Socket || !a.BDT || !a.NoNoise {
		t.Fatalf("expected socket/bdt/nonoise all set, got %+v", a)
	}
	if a.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", a.Port)
	}
	if a.SMR || a.Wave || a.Condi || a.Debug || a.File {
		t.Fatalf("unset flags should remain false, got %+v", a)
	}
}
