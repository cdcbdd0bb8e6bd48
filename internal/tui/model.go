package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/dispense"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/tracker"
	"github.com/julianstephens/pillbox/internal/validation"
)

const refreshInterval = 30 * time.Second

type MedicineFormModel struct {
	Name        string
	Dosage      string
	Compartment string
	Times       string
	ActiveFrom  string
	ActiveUntil string
}

type Model struct {
	tracker     *tracker.Tracker
	coordinator *dispense.Coordinator
	state       constants.SessionState
	keys        KeyMap
	help        help.Model
	spinner     spinner.Model
	form        *huh.Form
	medForm     *MedicineFormModel

	doses     []models.Dose
	cursor    int
	settings  models.Settings
	device    models.DeviceSnapshot
	hasDevice bool
	conflicts []validation.Conflict
	now       time.Time

	pendingID string // dose awaiting confirmation or being dispensed
	message   string
	err       error
	quitting  bool
	width     int
	height    int
}

func NewModel(t *tracker.Tracker, c *dispense.Coordinator) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = selectedStyle

	return Model{
		tracker:     t,
		coordinator: c,
		state:       constants.StateDoses,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     s,
		settings:    models.DefaultSettings(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

type tickMsg time.Time

type loadedMsg struct {
	doses     []models.Dose
	settings  models.Settings
	device    models.DeviceSnapshot
	hasDevice bool
	conflicts []validation.Conflict
	now       time.Time
	err       error
}

type dispensedMsg struct {
	result dispense.Result
	err    error
}

type missedMsg struct {
	dose models.Dose
	err  error
}

type statusMsg struct {
	snap models.DeviceSnapshot
	err  error
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// load re-derives today's doses and reads everything the dashboard shows.
func (m Model) load() tea.Cmd {
	t := m.tracker
	return func() tea.Msg {
		settings, err := t.Settings()
		if err != nil {
			return loadedMsg{err: err}
		}
		doses, err := t.Refresh(context.Background())
		if err != nil {
			return loadedMsg{err: err}
		}
		now, err := t.Now()
		if err != nil {
			return loadedMsg{err: err}
		}
		snap, ok, err := t.Device()
		if err != nil {
			return loadedMsg{err: err}
		}
		result, err := t.Conflicts()
		if err != nil {
			return loadedMsg{err: err}
		}
		return loadedMsg{
			doses:     doses,
			settings:  settings,
			device:    snap,
			hasDevice: ok,
			conflicts: result.Conflicts,
			now:       now,
		}
	}
}

func (m Model) dispenseCmd(doseID string) tea.Cmd {
	c := m.coordinator
	return func() tea.Msg {
		res, err := c.RequestDispense(context.Background(), doseID)
		return dispensedMsg{result: res, err: err}
	}
}

func (m Model) missCmd(dose models.Dose) tea.Cmd {
	c := m.coordinator
	return func() tea.Msg {
		_, err := c.MarkMissed(dose.ID)
		return missedMsg{dose: dose, err: err}
	}
}

func (m Model) statusCmd() tea.Cmd {
	c := m.coordinator
	return func() tea.Msg {
		snap, err := c.CheckStatus(context.Background())
		return statusMsg{snap: snap, err: err}
	}
}

func (m Model) selected() (models.Dose, bool) {
	if m.cursor < 0 || m.cursor >= len(m.doses) {
		return models.Dose{}, false
	}
	return m.doses[m.cursor], true
}
