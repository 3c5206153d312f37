package network

// ConnectivityStat reports one population's pre-run convergence/divergence
// summary (spec.md §6 "--condi": "convergence/divergence statistics dump
// produced pre-run for diagnostic purposes").
type ConnectivityStat struct {
	Pop        string
	NCells     int
	Divergence float64 // mean outgoing terminals per source cell/fiber
	Convergence float64 // mean incoming slots per target cell
}

// ConnectivityStats walks every cell and fiber population in g and reports
// its divergence (mean Terminals count) and, for cell populations, its
// convergence (mean IncomingSlots count; fibers have none, since incoming
// slots are only materialized on cells).
func ConnectivityStats(g *Graph) []ConnectivityStat {
	stats := make([]ConnectivityStat, 0, len(g.CellPops)+len(g.FiberPops))
	for _, cp := range g.CellPops {
		var outSum, inSum int
		for _, c := range cp.Cells {
			outSum += len(c.Terminals)
			inSum += len(c.IncomingSlots)
		}
		n := len(cp.Cells)
		stats = append(stats, ConnectivityStat{
			Pop:         cp.Desc.Name,
			NCells:      n,
			Divergence:  meanOf(outSum, n),
			Convergence: meanOf(inSum, n),
		})
	}
	for _, fp := range g.FiberPops {
		var outSum int
		for _, f := range fp.Fibers {
			outSum += len(f.Terminals)
		}
		n := len(fp.Fibers)
		stats = append(stats, ConnectivityStat{
			Pop:        fp.Desc.Name,
			NCells:     n,
			Divergence: meanOf(outSum, n),
		})
	}
	return stats
}

func meanOf(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
