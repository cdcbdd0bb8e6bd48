package doses

import (
	"fmt"

	"github.com/julianstephens/pillbox/internal/adherence"
	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
)

type AdherenceCmd struct {
	Days int `help:"Look back this many days." default:"30"`
}

func (c *AdherenceCmd) Run(ctx *cli.Context) error {
	since := ""
	if c.Days > 0 {
		now, err := ctx.Tracker.Now()
		if err != nil {
			return err
		}
		since = now.AddDate(0, 0, -c.Days).Format(constants.DateFormat)
	}

	report, err := adherence.NewAnalyzer(ctx.Store).Analyze(since)
	if err != nil {
		return err
	}
	if len(report.Stats) == 0 {
		fmt.Println("No settled doses in this period.")
		return nil
	}

	fmt.Printf("Adherence over the last %d days:\n\n", c.Days)
	for _, s := range report.Stats {
		fmt.Printf("  %-20s %3d dispensed  %3d missed  (%.0f%% missed)\n", s.MedicineName, s.Dispensed, s.Missed, s.MissedPercent())
	}
	if len(report.Findings) > 0 {
		fmt.Println()
		for _, f := range report.Findings {
			fmt.Printf("⚠ %s\n", f.Reason)
		}
	}
	return nil
}
