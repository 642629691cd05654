package views

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/tui/ui"
	"github.com/rivo/tview"
)

// SessionList is the session picker table.
type SessionList struct {
	*tview.Table
	theme    *ui.Theme
	sessions []*chat.Session
}

// NewSessionList creates a new session list table.
func NewSessionList(theme *ui.Theme) *SessionList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true).SetTitle(" Sessions ")
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	return &SessionList{Table: table, theme: theme}
}

// Update refreshes the session list with new data. activeID marks the
// active session with a bullet.
func (sl *SessionList) Update(sessions []*chat.Session, activeID string) {
	sl.sessions = sessions
	sl.Clear()

	headers := []string{"  TITLE", " PERSONA", " CREATED"}
	for col, h := range headers {
		sl.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sl.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}

	for i, sess := range sessions {
		row := i + 1
		marker := "  "
		if sess.ID == activeID {
			marker = "* "
		}
		title := sess.Title
		if title == "" {
			title = "(untitled)"
		}
		sl.SetCell(row, 0, tview.NewTableCell(marker+tview.Escape(title)).SetExpansion(2).SetTextColor(sl.theme.FgColor))
		sl.SetCell(row, 1, tview.NewTableCell(" "+sess.Settings.Persona).SetMaxWidth(20).SetTextColor(sl.theme.FgColor))
		sl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(sess.CreatedAt)).SetMaxWidth(12).SetTextColor(sl.theme.FgColor))
	}
}

// Selected returns the currently selected session, or nil.
func (sl *SessionList) Selected() *chat.Session {
	row, _ := sl.GetSelection()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(sl.sessions) {
		return sl.sessions[idx]
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
