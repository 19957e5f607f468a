package tui

// Palette shared by the timer and the overview table.
const (
	ColorBorder        = "#3A3F55"
	ColorPrimaryText   = "#E6EAF2"
	ColorSecondaryText = "#B1B8C7"
	ColorDisabledText  = "#6D7383"
	ColorHelpText      = "240"

	ColorAccentMain   = "#7C3AED" // logo, borders, selected row
	ColorAccentBright = "#A78BFA" // running clock, titles

	ColorError   = "#EF4444" // errors, negative overtime
	ColorSuccess = "#22C55E" // positive overtime
	ColorWarning = "#F59E0B" // paused clock
)
