package presenter

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mbbsolutions/com.shovibam-sub000/internal/types"
)

// Render writes grouped transactions as the history row layout: one line per
// transaction, fee lines indented underneath it.
func Render(w io.Writer, grouped []types.GroupedTransaction) error {
	if len(grouped) == 0 {
		_, err := fmt.Fprintln(w, "No transactions to display.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tD/C\tAMOUNT\tREFERENCE")

	for _, g := range grouped {
		r := g.Record
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			orDash(r.TransactionDate),
			orDash(r.Classifier()),
			orDash(r.DebitCreditIndicator),
			orDash(r.Amount),
			orDash(r.Reference))

		for _, f := range g.AssociatedFees {
			fmt.Fprintf(tw, "  + fee\t%s\t%s\t%s\t%s\n",
				orDash(f.Classifier()),
				orDash(f.DebitCreditIndicator),
				orDash(f.Amount),
				orDash(f.Reference))
		}
	}

	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
