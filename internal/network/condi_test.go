package network

import (
	"testing"

	"github.com/uflsim/engine/internal/netdesc"
)

func TestConnectivityStatsReportsMeanDivergenceAndConvergence(t *testing.T) {
	d := twoPopDesc(10, 2, 3)
	g, err := Build(d)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	stats := ConnectivityStats(g)
	if len(stats) != 2 {
		t.Fatalf("want 2 population stats, got %d", len(stats))
	}

	source := stats[0]
	if source.Pop != "source" || source.NCells != 3 {
		t.Fatalf("unexpected source stat: %+v", source)
	}
	if source.Divergence <= 0 {
		t.Fatalf("source population should diverge onto target, got %+v", source)
	}

	target := stats[1]
	if target.Pop != "target" || target.NCells != 5 {
		t.Fatalf("unexpected target stat: %+v", target)
	}
	if target.Convergence <= 0 {
		t.Fatalf("target population should converge from source, got %+v", target)
	}
}

func TestConnectivityStatsHandlesEmptyPopulation(t *testing.T) {
	d := &netdesc.Description{
		Global: netdesc.GlobalParams{DtMs: 0.5, Vm0: -65},
		CellPops: []netdesc.CellPopulation{
			{Index: 1, Name: "lonely", Count: 0, Subtype: netdesc.Standard},
		},
	}
	g, err := Build(d)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	stats := ConnectivityStats(g)
	if len(stats) != 1 {
		t.Fatalf("want 1 population stat, got %d", len(stats))
	}
	if stats[0].NCells != 0 || stats[0].Divergence != 0 || stats[0].Convergence != 0 {
		t.Fatalf("empty population should report zeroed stats, got %+v", stats[0])
	}
}
