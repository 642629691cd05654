package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/rfpgpt/rfpgpt/internal/tui/ui"
)

// StatusBar displays persistent profile/session status.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
	session string
	busy    bool
	banner  string
	flash   *ui.FlashMessage
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetSession updates the active session title display.
func (sb *StatusBar) SetSession(title string) {
	sb.session = title
	sb.render()
}

// SetBusy updates the in-flight send indicator.
func (sb *StatusBar) SetBusy(busy bool) {
	sb.busy = busy
	sb.render()
}

// SetBanner updates the persistent error banner.
func (sb *StatusBar) SetBanner(msg string) {
	sb.banner = msg
	sb.render()
}

// SetFlash shows a transient notice; nil clears it.
func (sb *StatusBar) SetFlash(m *ui.FlashMessage) {
	sb.flash = m
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	busyIcon := " "
	if sb.busy {
		busyIcon = "[green]~[-]"
	}

	session := sb.session
	if session == "" {
		session = "no session"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s %s | %s", sb.profile, tview.Escape(session), busyIcon, clock)
	if sb.banner != "" {
		line += fmt.Sprintf(" | [red]%s[-]", tview.Escape(sb.banner))
	}
	if sb.flash != nil {
		color := sb.theme.FlashInfoColor
		if sb.flash.Level == ui.FlashErr {
			color = sb.theme.FlashErrColor
		}
		line += fmt.Sprintf(" | [#%06x]%s[-]", color.Hex(), tview.Escape(sb.flash.Text))
	}

	_, _ = fmt.Fprint(sb, line)
}
