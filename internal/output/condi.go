package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/uflsim/engine/internal/network"
)

// WriteConnectivityCSV writes one row per population's convergence/
// divergence summary (spec.md §6 "--condi"), grounded on dtable/io.go's
// encoding/csv writer idiom.
func WriteConnectivityCSV(w io.Writer, stats []network.ConnectivityStat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"population", "ncells", "divergence", "convergence"}); err != nil {
		return err
	}
	for _, s := range stats {
		row := []string{
			s.Pop,
			fmt.Sprintf("%d", s.NCells),
			fmt.Sprintf("%.4f", s.Divergence),
			fmt.Sprintf("%.4f", s.Convergence),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
