package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/dispense"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/tracker"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.state != constants.StateAddMedicine {
			return m, nil
		}

	case tickMsg:
		return m, tea.Batch(m.load(), tick())

	case loadedMsg:
		m.applyLoaded(msg)
		return m, nil

	case dispensedMsg:
		m.state = constants.StateDoses
		m.pendingID = ""
		m.message, m.err = describeDispense(msg.result, msg.err)
		return m, m.load()

	case missedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("could not mark %s missed: %w", msg.dose.MedicineName, msg.err)
		} else {
			m.err = nil
			m.message = fmt.Sprintf("%s at %s marked missed.", msg.dose.MedicineName, msg.dose.ScheduledTime)
		}
		return m, m.load()

	case statusMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("device status: %w", msg.err)
		} else {
			m.err = nil
			m.message = fmt.Sprintf("Device %s, battery %d%%.", onlineLabel(msg.snap.IsOnline), msg.snap.BatteryPercent)
		}
		return m, m.load()

	case spinner.TickMsg:
		if m.state != constants.StateDispensing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.state == constants.StateAddMedicine {
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case constants.StateConfirmDispense:
			return m.handleConfirmKeys(msg)
		case constants.StateDispensing:
			if msg.String() == "ctrl+c" {
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		default:
			return m.handleDoseKeys(msg)
		}
	}
	return m, nil
}

func (m *Model) applyLoaded(msg loadedMsg) {
	if msg.err != nil {
		m.err = msg.err
		return
	}
	m.doses = msg.doses
	m.settings = msg.settings
	m.device = msg.device
	m.hasDevice = msg.hasDevice
	m.conflicts = msg.conflicts
	m.now = msg.now
	if m.cursor >= len(m.doses) {
		m.cursor = len(m.doses) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) handleDoseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.doses)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Dispense):
		dose, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !dose.IsUpcoming() {
			m.message = fmt.Sprintf("%s at %s is already %s.", dose.MedicineName, dose.ScheduledTime, dose.Status)
			return m, nil
		}
		if m.coordinator.InFlight(dose.ID) {
			m.message = "A dispense for this dose is already in progress."
			return m, nil
		}
		m.pendingID = dose.ID
		m.state = constants.StateConfirmDispense
	case key.Matches(msg, m.keys.Miss):
		dose, ok := m.selected()
		if !ok || !dose.IsUpcoming() {
			return m, nil
		}
		return m, m.missCmd(dose)
	case key.Matches(msg, m.keys.Add):
		return m.startAddMedicine()
	case key.Matches(msg, m.keys.Refresh):
		m.message = ""
		m.err = nil
		return m, m.load()
	case key.Matches(msg, m.keys.Status):
		m.message = "Checking device..."
		return m, m.statusCmd()
	case key.Matches(msg, m.keys.Emergency):
		m.message = emergencyMessage(m.settings.EmergencyContact)
	}
	return m, nil
}

func emergencyMessage(c models.EmergencyContact) string {
	if !c.Callable() {
		return dangerStyle.Render("No emergency contact saved!") +
			" Add one with: " + constants.AppName + " settings --emergency-phone NUMBER"
	}
	name := c.Name
	if name == "" {
		name = "Emergency contact"
	}
	return dangerStyle.Render("SOS") + fmt.Sprintf(" Call %s at %s", name, c.Phone)
}

func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.state = constants.StateDispensing
		m.message = ""
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, m.dispenseCmd(m.pendingID))
	case key.Matches(msg, m.keys.Cancel):
		m.state = constants.StateDoses
		m.pendingID = ""
	case msg.String() == "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) pendingDose() (models.Dose, bool) {
	for _, d := range m.doses {
		if d.ID == m.pendingID {
			return d, true
		}
	}
	return models.Dose{}, false
}

// describeDispense turns a settled request into the status line shown under
// the dose list.
func describeDispense(res dispense.Result, err error) (string, error) {
	name := res.Dose.MedicineName
	switch {
	case err == nil:
		return fmt.Sprintf("%s: %s", name, res.Message), nil
	case device.IsRefused(err):
		return fmt.Sprintf("%s was not dispensed: %s", name, res.Message), nil
	case errors.Is(err, device.ErrCommunication):
		return "", fmt.Errorf("%s: %s. The dose is still upcoming", name, constants.DeviceUnreachableReason)
	case errors.Is(err, dispense.ErrNotUpcoming):
		return fmt.Sprintf("%s was already settled.", name), nil
	case errors.Is(err, dispense.ErrInFlight):
		return "A dispense for this dose is already in progress.", nil
	default:
		return "", err
	}
}

func (m Model) startAddMedicine() (tea.Model, tea.Cmd) {
	today := m.now
	if today.IsZero() {
		if now, err := m.tracker.Now(); err == nil {
			today = now
		}
	}
	m.medForm = &MedicineFormModel{
		Compartment: strconv.Itoa(constants.MinCompartment),
		ActiveFrom:  today.Format(constants.DateFormat),
		ActiveUntil: today.AddDate(0, 0, 30).Format(constants.DateFormat),
	}
	m.form = newMedicineForm(m.medForm)
	m.state = constants.StateAddMedicine
	m.message = ""
	m.err = nil
	return m, m.form.Init()
}

func newMedicineForm(f *MedicineFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&f.Name).
				Validate(required("name")),
			huh.NewInput().
				Title("Dosage").
				Placeholder("100mg").
				Value(&f.Dosage).
				Validate(required("dosage")),
			huh.NewInput().
				Title(fmt.Sprintf("Compartment (%d-%d)", constants.MinCompartment, constants.MaxCompartment)).
				Value(&f.Compartment).
				Validate(validateCompartment),
			huh.NewInput().
				Title("Times of day").
				Description("HH:MM, comma separated").
				Placeholder("08:00, 20:00").
				Value(&f.Times).
				Validate(validateTimes),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Active from").
				Description("YYYY-MM-DD").
				Value(&f.ActiveFrom),
			huh.NewInput().
				Title("Active until").
				Description("YYYY-MM-DD").
				Value(&f.ActiveUntil),
		),
	)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateCompartment(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < constants.MinCompartment || n > constants.MaxCompartment {
		return fmt.Errorf("must be a number between %d and %d", constants.MinCompartment, constants.MaxCompartment)
	}
	return nil
}

func validateTimes(s string) error {
	times := models.SplitTimes(s)
	if len(times) == 0 {
		return errors.New("at least one time is required")
	}
	_, err := models.NormalizeTimes(times)
	return err
}

func (f MedicineFormModel) input() tracker.MedicineInput {
	compartment, _ := strconv.Atoi(strings.TrimSpace(f.Compartment))
	return tracker.MedicineInput{
		Name:        f.Name,
		Dosage:      f.Dosage,
		Compartment: compartment,
		Times:       models.SplitTimes(f.Times),
		ActiveFrom:  f.ActiveFrom,
		ActiveUntil: f.ActiveUntil,
	}
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = constants.StateDoses
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.state = constants.StateDoses
		in := m.medForm.input()

		check, err := m.tracker.CheckMedicine(in)
		if err != nil {
			m.err = err
			return m, nil
		}
		if _, err := m.tracker.AddMedicine(in); err != nil {
			m.err = err
			return m, m.load()
		}
		m.message = fmt.Sprintf("Added %s.", strings.TrimSpace(in.Name))
		if check.HasConflicts() {
			m.message += fmt.Sprintf(" %d conflict(s): %s", len(check.Conflicts), check.Conflicts[0].Description)
		}
		return m, m.load()
	case huh.StateAborted:
		m.state = constants.StateDoses
		return m, nil
	}
	return m, cmd
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
