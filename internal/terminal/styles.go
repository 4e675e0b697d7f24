package terminal

import "github.com/charmbracelet/lipgloss"

// Color theme
const (
	Navy  = lipgloss.Color("25")
	Teal  = lipgloss.Color("37")
	Gray  = lipgloss.Color("245")
	Red   = lipgloss.Color("196")
	Amber = lipgloss.Color("214")
)

var (
	headerStyle    = lipgloss.NewStyle().Foreground(Navy).Bold(true)
	userLabelStyle = lipgloss.NewStyle().Foreground(Teal).Bold(true)
	botLabelStyle  = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	promptStyle    = lipgloss.NewStyle().Foreground(Teal).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(Gray)
	recordingStyle = lipgloss.NewStyle().Foreground(Red).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(Red)
)
