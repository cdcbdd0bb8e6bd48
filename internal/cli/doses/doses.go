package doses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/dispense"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/utils"
)

// Interactive pieces are variables so tests can run the commands headless.
var (
	confirm = func(title string) (bool, error) {
		ok := false
		err := huh.NewConfirm().
			Title(title).
			Affirmative("Dispense").
			Negative("Cancel").
			Value(&ok).
			Run()
		return ok, err
	}
	withSpinner = func(title string, action func()) error {
		return spinner.New().Title(title).Action(action).Run()
	}
)

type TodayCmd struct{}

func (c *TodayCmd) Run(ctx *cli.Context) error {
	doses, err := ctx.Tracker.Today()
	if err != nil {
		return fmt.Errorf("failed to load today's doses: %w", err)
	}
	now, err := ctx.Tracker.Now()
	if err != nil {
		return err
	}
	settings, err := ctx.Tracker.Settings()
	if err != nil {
		return err
	}

	fmt.Printf("Doses for %s\n\n", now.Format(constants.DateFormat))
	if len(doses) == 0 {
		fmt.Println("No doses scheduled today.")
		fmt.Printf("Add a medicine with '%s medicine add'.\n", constants.AppName)
		return nil
	}

	lead := time.Duration(settings.ReminderBeforeMin) * time.Minute
	for _, d := range doses {
		marker := ""
		if d.IsUpcoming() && utils.IsDueSoon(d.ForDate, d.ScheduledTime, lead, now) {
			marker = "  ⏰ due soon"
		}
		fmt.Printf("  %8s  %-12s %-20s %-10s compartment %-2d  %s%s\n",
			utils.FormatClock(d.ScheduledTime, settings.TimeFormat),
			cli.FormatStatus(d), d.MedicineName, d.Dosage, d.Compartment, d.ID, marker)
	}

	s := models.Summarize(doses)
	fmt.Printf("\n%d upcoming · %d dispensed · %d missed\n", s.Upcoming, s.Dispensed, s.Missed)
	if next, ok := models.NextUpcoming(doses); ok {
		fmt.Printf("Next: %s %s at %s\n", next.MedicineName, next.Dosage,
			utils.FormatClock(next.ScheduledTime, settings.TimeFormat))
	}
	return nil
}

type DispenseCmd struct {
	ID   string `arg:"" optional:"" help:"Dose id (<medicine-id>/<YYYY-MM-DD>/<HH:MM>)."`
	Next bool   `help:"Dispense the next upcoming dose today."`
	Yes  bool   `short:"y" help:"Dispense without asking for confirmation."`
}

func (c *DispenseCmd) Run(ctx *cli.Context) error {
	dose, err := ctx.FindDose(c.ID, c.Next)
	if err != nil {
		return err
	}
	if !dose.IsUpcoming() {
		return fmt.Errorf("%s %s at %s is already %s", dose.MedicineName, dose.Dosage, ctx.Clock(dose.ScheduledTime), dose.Status)
	}

	if !c.Yes {
		ok, err := confirm(fmt.Sprintf("Dispense %s %s from compartment %d?", dose.MedicineName, dose.Dosage, dose.Compartment))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Dispense cancelled.")
			return nil
		}
	}

	var (
		res     dispense.Result
		dispErr error
	)
	if err := withSpinner(fmt.Sprintf("Dispensing %s…", dose.MedicineName), func() {
		res, dispErr = ctx.Coordinator.RequestDispense(context.Background(), dose.ID)
	}); err != nil {
		return err
	}

	switch {
	case dispErr == nil:
		fmt.Printf("✓ %s: %s\n", dose.MedicineName, res.Message)
		return nil
	case device.IsRefused(dispErr):
		fmt.Printf("⚠ %s: %s\n", dose.MedicineName, res.Message)
		fmt.Println("  The dose is still upcoming; try again.")
		return nil
	case errors.Is(dispErr, device.ErrCommunication):
		return fmt.Errorf("%s: %w", constants.DeviceUnreachableReason, dispErr)
	default:
		return dispErr
	}
}

type MissCmd struct {
	ID string `arg:"" help:"Dose id to mark as missed."`
}

func (c *MissCmd) Run(ctx *cli.Context) error {
	record, err := ctx.Coordinator.MarkMissed(c.ID)
	if err != nil {
		return fmt.Errorf("failed to mark dose missed: %w", err)
	}
	fmt.Printf("✗ Marked %s %s missed\n", record.MedicineName, record.Dosage)
	return nil
}

type SweepCmd struct{}

func (c *SweepCmd) Run(ctx *cli.Context) error {
	now, err := ctx.Tracker.Now()
	if err != nil {
		return err
	}
	// Derive today first so overdue doses exist to be swept.
	if _, err := ctx.Tracker.Today(); err != nil {
		return err
	}
	swept, err := ctx.Coordinator.SweepOverdue(context.Background(), now)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	if len(swept) == 0 {
		fmt.Println("No overdue doses.")
		return nil
	}
	for _, r := range swept {
		fmt.Printf("✗ %s %s (%s) marked missed\n", r.MedicineName, r.Dosage, r.DoseID)
	}
	fmt.Printf("\n%d dose(s) marked missed.\n", len(swept))
	return nil
}

type HistoryCmd struct {
	Outcome string `help:"Only show records with this outcome." enum:",dispensed,missed" default:""`
	Limit   int    `short:"n" help:"Maximum number of records." default:"50"`
	Since   string `help:"Only show records on or after this date (YYYY-MM-DD, 'today' or 'yesterday')."`
}

func (c *HistoryCmd) Run(ctx *cli.Context) error {
	filter := models.HistoryFilter{
		Outcome: constants.Outcome(c.Outcome),
		Limit:   c.Limit,
	}
	if c.Since != "" {
		since, err := ctx.ParseDate(c.Since)
		if err != nil {
			return err
		}
		filter.Since = since
	}

	records, err := ctx.Tracker.History(filter)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	dates, groups := models.GroupByDate(records)
	for i, date := range dates {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(date)
		for _, r := range groups[date] {
			mark := "✓"
			if r.Outcome == constants.OutcomeMissed {
				mark = "✗"
			}
			fmt.Printf("  %8s  %s %-9s %-20s %-10s compartment %d\n",
				ctx.Clock(r.Time), mark, r.Outcome, r.MedicineName, r.Dosage, r.Compartment)
		}
	}
	return nil
}
