package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/utils"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case constants.StateConfirmDispense:
		content = m.viewConfirmDispense()
	case constants.StateDispensing:
		content = m.viewDispensing()
	case constants.StateAddMedicine:
		content = docStyle.Render(m.form.View())
	default:
		content = m.viewDoses()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewHeader(),
		m.viewConflictBanner(),
		content,
		m.help.View(m.keys),
	)
}

func (m Model) viewHeader() string {
	title := titleStyle.Render(constants.AppName)
	if m.now.IsZero() {
		return title
	}
	clock := utils.FormatClock(m.now.Format(constants.TimeFormat), m.settings.TimeFormat)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		title,
		subtleStyle.Render(fmt.Sprintf(" %s  %s", m.now.Format("Mon Jan 2"), clock)),
	)
}

func (m Model) viewConflictBanner() string {
	if len(m.conflicts) == 0 {
		return ""
	}
	return bannerStyle.Render(fmt.Sprintf("⚠ %d CONFLICT(S) IN MEDICINE REGISTRY", len(m.conflicts)))
}

func (m Model) viewDoses() string {
	var b strings.Builder

	s := models.Summarize(m.doses)
	fmt.Fprintf(&b, "%d upcoming · %s · %s\n",
		s.Upcoming,
		dispensedStyle.Render(fmt.Sprintf("%d dispensed", s.Dispensed)),
		dangerStyle.Render(fmt.Sprintf("%d missed", s.Missed)),
	)
	if next, ok := models.NextUpcoming(m.doses); ok {
		fmt.Fprintf(&b, "Next: %s %s at %s\n", next.MedicineName, next.Dosage, m.clock(next.ScheduledTime))
	}
	b.WriteString("\n")

	if len(m.doses) == 0 {
		b.WriteString(subtleStyle.Render("No doses scheduled today."))
		b.WriteString("\n")
	}
	for i, d := range m.doses {
		b.WriteString(m.renderDose(d, i == m.cursor))
		b.WriteString("\n")
	}

	if m.message != "" {
		b.WriteString("\n")
		b.WriteString(m.message)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(dangerStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.viewDevice(),
		b.String(),
	))
}

func (m Model) renderDose(d models.Dose, selected bool) string {
	cursor := "  "
	if selected {
		cursor = selectedStyle.Render("> ")
	}
	line := fmt.Sprintf("%-8s %-20s %-10s #%-2d", m.clock(d.ScheduledTime), d.MedicineName, d.Dosage, d.Compartment)

	var status string
	switch {
	case m.coordinator != nil && m.coordinator.InFlight(d.ID):
		status = warningStyle.Render("dispensing…")
	case d.Status == constants.DoseStatusDispensed:
		status = dispensedStyle.Render(string(d.Status))
	case d.Status == constants.DoseStatusMissed:
		status = dangerStyle.Render(string(d.Status))
	case m.dueSoon(d):
		status = warningStyle.Render("due soon")
	default:
		status = subtleStyle.Render(string(d.Status))
	}
	if selected {
		line = selectedStyle.Render(line)
	}
	return cursor + line + " " + status
}

func (m Model) dueSoon(d models.Dose) bool {
	if m.now.IsZero() || !d.IsUpcoming() {
		return false
	}
	lead := time.Duration(m.settings.ReminderBeforeMin) * time.Minute
	return utils.IsDueSoon(d.ForDate, d.ScheduledTime, lead, m.now)
}

func (m Model) viewDevice() string {
	if !m.hasDevice {
		return panelStyle.Render(subtleStyle.Render("Device: not contacted yet (press s)") + "\n" + m.viewContact())
	}
	band := m.device.BatteryBand()
	battery := batteryStyle(band).Render(fmt.Sprintf("%d%% (%s)", m.device.BatteryPercent, band))
	status := dispensedStyle.Render("online")
	if !m.device.IsOnline {
		status = dangerStyle.Render("offline")
	}
	synced := "never"
	if !m.device.LastSyncedAt.IsZero() {
		synced = m.device.LastSyncedAt.Format("Jan 2 ") + m.clock(m.device.LastSyncedAt.Format(constants.TimeFormat))
	}
	return panelStyle.Render(fmt.Sprintf("Device: %s  Battery: %s  Last sync: %s\n%s", status, battery, synced, m.viewContact()))
}

func (m Model) viewContact() string {
	c := m.settings.EmergencyContact
	if !c.Callable() {
		return warningStyle.Render("⚠ No emergency contact saved")
	}
	if c.Name == "" {
		return fmt.Sprintf("SOS: %s (press e)", c.Phone)
	}
	return fmt.Sprintf("SOS: %s %s (press e)", c.Name, c.Phone)
}

func (m Model) viewConfirmDispense() string {
	question := "Dispense this dose?"
	if d, ok := m.pendingDose(); ok {
		question = fmt.Sprintf("Dispense %s %s from compartment %d?", d.MedicineName, d.Dosage, d.Compartment)
	}
	return m.place(lipgloss.JoinVertical(lipgloss.Center,
		warningStyle.Render(question),
		"",
		"[y] Yes",
		"[n] No",
	))
}

func (m Model) viewDispensing() string {
	label := "Dispensing..."
	if d, ok := m.pendingDose(); ok {
		label = fmt.Sprintf("Dispensing %s from compartment %d...", d.MedicineName, d.Compartment)
	}
	return m.place(m.spinner.View() + " " + label)
}

func (m Model) place(s string) string {
	if m.width == 0 || m.height == 0 {
		return docStyle.Render(s)
	}
	return lipgloss.Place(m.width, m.height-4, lipgloss.Center, lipgloss.Center, s)
}

func (m Model) clock(hhmm string) string {
	return utils.FormatClock(hhmm, m.settings.TimeFormat)
}
