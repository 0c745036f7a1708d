package view

import "github.com/charmbracelet/lipgloss"

// ---------------------------------------------------------------------------
// Catppuccin Mocha palette, true-color hex values
// https://catppuccin.com/palette
// ---------------------------------------------------------------------------

const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorLavender lipgloss.Color = "#b4befe"

	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext1 lipgloss.Color = "#bac2de"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorOverlay0 lipgloss.Color = "#6c7086"
	colorSurface2 lipgloss.Color = "#585b70"
	colorSurface1 lipgloss.Color = "#45475a"
	colorSurface0 lipgloss.Color = "#313244"
	colorMantle   lipgloss.Color = "#181825"
)

const (
	colorAccent  = colorPink
	colorBrand   = colorPink
	colorFocus   = colorLavender
	colorSuccess = colorGreen
	colorError   = colorRed
	colorWarning = colorYellow
	colorInfo    = colorTeal
)

// Palette returns every color the view draws with.
func Palette() []lipgloss.Color {
	return []lipgloss.Color{
		colorPink, colorRed, colorPeach, colorYellow, colorGreen, colorTeal, colorLavender,
		colorText, colorSubtext1, colorSubtext0, colorOverlay1, colorOverlay0,
		colorSurface2, colorSurface1, colorSurface0, colorMantle,
	}
}

var (
	TitleStyle = lipgloss.NewStyle().Foreground(colorBrand).Bold(true)

	HeaderBarStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorMantle).
			Padding(0, 2)

	FooterStyle = lipgloss.NewStyle().
			Foreground(colorSubtext0).
			Padding(0, 2)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(colorSubtext1).
			Background(colorSurface0).
			Padding(0, 2)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	CursorStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(colorOverlay1)
	ErrorStyle  = lipgloss.NewStyle().Foreground(colorError)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Background(colorSurface0).
			Bold(true).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorOverlay1).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().Foreground(colorOverlay0)

	closeStyle = lipgloss.NewStyle().Foreground(colorOverlay0)

	pendingStyle = lipgloss.NewStyle().Foreground(colorWarning)
	doneStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
	failedStyle  = lipgloss.NewStyle().Foreground(colorError)

	metaNameStyle    = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	metaSizeStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	badgeStyle       = lipgloss.NewStyle().Foreground(colorMantle).Background(colorFocus).Padding(0, 1)
	badgeErrStyle    = lipgloss.NewStyle().Foreground(colorMantle).Background(colorError).Padding(0, 1)
	placeholderStyle = lipgloss.NewStyle().Foreground(colorSubtext0).Italic(true)
	previewStyle     = lipgloss.NewStyle().Foreground(colorPeach)
	ruleStyle        = lipgloss.NewStyle().Foreground(colorSurface2)
	boxStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSurface1).Padding(0, 1)
)
