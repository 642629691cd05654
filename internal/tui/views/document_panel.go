package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/tui/ui"
	"github.com/rivo/tview"
)

// DocumentPanel lists the documents attached to the active session.
type DocumentPanel struct {
	*tview.Table
	theme *ui.Theme
	docs  []*chat.DocumentContext
}

// NewDocumentPanel creates a new document panel table.
func NewDocumentPanel(theme *ui.Theme) *DocumentPanel {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true).SetTitle(" Documents ")
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	return &DocumentPanel{Table: table, theme: theme}
}

// Update refreshes the document list.
func (dp *DocumentPanel) Update(docs []*chat.DocumentContext) {
	dp.docs = docs
	dp.Clear()

	headers := []string{" NAME", " STATUS", " KEYWORDS"}
	for col, h := range headers {
		dp.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(dp.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}

	for i, d := range docs {
		row := i + 1
		status := string(d.Status)
		if d.Status == chat.ProcessingError {
			status = "[red]" + status + "[-]"
		}
		dp.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(d.Title)).SetExpansion(1).SetTextColor(dp.theme.FgColor))
		dp.SetCell(row, 1, tview.NewTableCell(" "+status).SetMaxWidth(12).SetTextColor(dp.theme.FgColor))
		dp.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(strings.Join(d.Keywords, ", "))).SetMaxWidth(40).SetTextColor(dp.theme.FgColor))
	}
}

// Selected returns the currently selected document, or nil.
func (dp *DocumentPanel) Selected() *chat.DocumentContext {
	row, _ := dp.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(dp.docs) {
		return dp.docs[idx]
	}
	return nil
}
