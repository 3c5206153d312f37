package formula

import "testing"

func TestEvalArithmetic(t *testing.T) {
	c := NewCache()
	v, err := c.Eval("2 + 3 * phrenic", Vars{"phrenic": 4})
	if err != nil {
		t.Fatal(err)
	}
	if v != 14 {
		t.Fatalf("expected 14, got %v", v)
	}
}

func TestEvalCachesProgram(t *testing.T) {
	c := NewCache()
	src := "lumbar / 2"
	if _, err := c.Eval(src, Vars{"lumbar": 10}); err != nil {
		t.Fatal(err)
	}
	if len(c.programs) != 1 {
		t.Fatalf("expected one cached program, got %d", len(c.programs))
	}
	if _, err := c.Eval(src, Vars{"lumbar": 20}); err != nil {
		t.Fatal(err)
	}
	if len(c.programs) != 1 {
		t.Fatalf("expected program reuse, cache grew to %d", len(c.programs))
	}
}

func TestEvalUnknownIdentifierIsConfigError(t *testing.T) {
	c := NewCache()
	_, err := c.Eval("unknown_var + 1", Vars{"phrenic": 1})
	if err == nil {
		t.Fatal("expected error for unknown identifier")
	}
}
