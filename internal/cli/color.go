package cli

import "github.com/charmbracelet/lipgloss"

// ANSI 256 colors for broad terminal compatibility.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styleCode    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	styleProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))

	styleHeader = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func render(style lipgloss.Style, s string) string {
	if !EnableColors() {
		return s
	}
	return style.Render(s)
}

// Error returns text styled as an error label.
func Error(s string) string { return render(styleError, s) }

// Warning returns text styled as a warning label.
func Warning(s string) string { return render(styleWarning, s) }

// Help returns text styled as a help label.
func Help(s string) string { return render(styleHelp, s) }

// Success returns text styled as a success message.
func Success(s string) string { return render(styleSuccess, s) }

// Info returns text styled as informational text.
func Info(s string) string { return render(styleInfo, s) }

// Code returns text styled as an error code.
func Code(s string) string { return render(styleCode, s) }

// Progress returns text styled for progress display.
func Progress(s string) string { return render(styleProgress, s) }

// Header returns text styled as a table header.
func Header(s string) string { return render(styleHeader, s) }

// Dim returns muted text.
func Dim(s string) string { return render(styleDim, s) }
