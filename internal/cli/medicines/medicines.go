package medicines

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage"
	"github.com/julianstephens/pillbox/internal/tracker"
	"github.com/julianstephens/pillbox/internal/validation"
)

// defaultCourseDays is the active range used when --until is omitted.
const defaultCourseDays = 30

type AddCmd struct {
	Name        string `help:"Medicine name." required:""`
	Dosage      string `help:"Dosage, e.g. 100mg." required:""`
	Compartment int    `help:"Dispenser compartment (1-20)." required:""`
	Times       string `help:"Daily times as HH:MM, comma separated." required:""`
	From        string `help:"First active date (YYYY-MM-DD or 'today')." default:"today"`
	Until       string `help:"Last active date (YYYY-MM-DD). Defaults to 30 days after --from."`
}

func (c *AddCmd) input(ctx *cli.Context) (tracker.MedicineInput, error) {
	from, err := ctx.ParseDate(c.From)
	if err != nil {
		return tracker.MedicineInput{}, err
	}
	until := c.Until
	if until == "" {
		start, _ := time.Parse(constants.DateFormat, from)
		until = start.AddDate(0, 0, defaultCourseDays).Format(constants.DateFormat)
	} else if until, err = ctx.ParseDate(until); err != nil {
		return tracker.MedicineInput{}, err
	}
	return tracker.MedicineInput{
		Name:        c.Name,
		Dosage:      c.Dosage,
		Compartment: c.Compartment,
		Times:       models.SplitTimes(c.Times),
		ActiveFrom:  from,
		ActiveUntil: until,
	}, nil
}

func (c *AddCmd) Run(ctx *cli.Context) error {
	in, err := c.input(ctx)
	if err != nil {
		return err
	}
	return add(ctx, in)
}

// add stores in and prints any registry conflicts it introduces.
func add(ctx *cli.Context, in tracker.MedicineInput) error {
	conflicts, err := ctx.Tracker.CheckMedicine(in)
	if err != nil {
		return describeInvalid(in.Name, err)
	}

	id, err := ctx.Tracker.AddMedicine(in)
	if err != nil {
		return describeInvalid(in.Name, err)
	}
	fmt.Printf("✓ Added %s %s (compartment %d): %s\n", in.Name, in.Dosage, in.Compartment, id)
	printConflicts(conflicts)
	return nil
}

func printConflicts(result validation.ValidationResult) {
	if !result.HasConflicts() {
		return
	}
	for _, c := range result.Conflicts {
		fmt.Printf("  ⚠ %s\n", c.Description)
	}
}

func describeInvalid(name string, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid medicine %q: %w", name, err)
	}
	return fmt.Errorf("failed to add medicine %q: %w", name, err)
}

type ListCmd struct {
	All bool `help:"Include removed medicines."`
}

func (c *ListCmd) Run(ctx *cli.Context) error {
	medicines, err := ctx.Tracker.Medicines(c.All)
	if err != nil {
		return fmt.Errorf("failed to list medicines: %w", err)
	}
	if len(medicines) == 0 {
		fmt.Println("No medicines registered.")
		return nil
	}

	for _, m := range medicines {
		times := make([]string, len(m.Times))
		for i, t := range m.Times {
			times[i] = ctx.Clock(t)
		}
		status := ""
		if m.IsDeleted() {
			status = " [removed]"
		}
		fmt.Printf("%s  %s %s%s\n", m.ID, m.Name, m.Dosage, status)
		fmt.Printf("    compartment %d · %s · %s..%s\n", m.Compartment, strings.Join(times, ", "), m.ActiveFrom, m.ActiveUntil)
	}
	return nil
}

type RemoveCmd struct {
	ID string `arg:"" help:"ID of the medicine to remove."`
}

func (c *RemoveCmd) Run(ctx *cli.Context) error {
	if err := ctx.Tracker.RemoveMedicine(c.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("medicine not found: %s", c.ID)
		}
		return fmt.Errorf("failed to remove medicine: %w", err)
	}
	fmt.Printf("✓ Removed medicine %s\n", c.ID)
	fmt.Println("  Doses already scheduled are kept in the history.")
	return nil
}

type RestoreCmd struct {
	ID string `arg:"" help:"ID of the medicine to restore."`
}

func (c *RestoreCmd) Run(ctx *cli.Context) error {
	if err := ctx.Tracker.RestoreMedicine(c.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("medicine not found: %s", c.ID)
		}
		return fmt.Errorf("failed to restore medicine: %w", err)
	}
	fmt.Printf("✓ Restored medicine %s\n", c.ID)
	return nil
}

// regimen is the YAML document read by ImportCmd.
type regimen struct {
	Medicines []models.Medicine `yaml:"medicines"`
}

type ImportCmd struct {
	File   string `arg:"" type:"existingfile" help:"YAML file with a top-level 'medicines' list."`
	DryRun bool   `help:"Validate the file without storing anything."`
}

func (c *ImportCmd) Run(ctx *cli.Context) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.File, err)
	}
	inputs, err := parseRegimen(data)
	if err != nil {
		return err
	}

	for _, in := range inputs {
		if _, err := ctx.Tracker.PrepareMedicine(in); err != nil {
			return describeInvalid(in.Name, err)
		}
	}
	if c.DryRun {
		fmt.Printf("✓ %d medicine(s) valid\n", len(inputs))
		return nil
	}

	for _, in := range inputs {
		if err := add(ctx, in); err != nil {
			return err
		}
	}
	fmt.Printf("\nImported %d medicine(s).\n", len(inputs))
	return nil
}

func parseRegimen(data []byte) ([]tracker.MedicineInput, error) {
	var doc regimen
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse regimen: %w", err)
	}
	if len(doc.Medicines) == 0 {
		return nil, fmt.Errorf("regimen has no medicines")
	}
	inputs := make([]tracker.MedicineInput, len(doc.Medicines))
	for i, m := range doc.Medicines {
		inputs[i] = tracker.MedicineInput{
			Name:        m.Name,
			Dosage:      m.Dosage,
			Compartment: m.Compartment,
			Times:       m.Times,
			ActiveFrom:  m.ActiveFrom,
			ActiveUntil: m.ActiveUntil,
		}
	}
	return inputs, nil
}
