package views

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rfpgpt/rfpgpt/internal/history"
	"github.com/rfpgpt/rfpgpt/internal/tui/ui"
)

// SearchView provides full-text search over the local transcript archive.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	data    []history.SearchResult
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	sv := &SearchView{theme: theme}

	sv.input = tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	sv.input.SetBackgroundColor(theme.BgColor)
	sv.input.SetFieldBackgroundColor(theme.BgColor)
	sv.input.SetFieldTextColor(theme.FgColor)

	sv.results = tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	sv.results.SetBorder(true).SetTitle(" Results ")
	sv.results.SetBorderColor(theme.BorderColor)
	sv.results.SetBackgroundColor(theme.BgColor)
	sv.results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	sv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(sv.input, 1, 0, true).
		AddItem(sv.results, 0, 1, false)
	return sv
}

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
	sv.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil {
			sv.onQuery(sv.input.GetText())
		}
	})
}

func (sv *SearchView) cell(text string, width int) *tview.TableCell {
	c := tview.NewTableCell(" " + text).SetTextColor(sv.theme.FgColor)
	if width > 0 {
		c.SetMaxWidth(width)
	} else {
		c.SetExpansion(1)
	}
	return c
}

// Update refreshes search results.
func (sv *SearchView) Update(results []history.SearchResult) {
	sv.data = results
	sv.results.Clear()

	for col, h := range []string{" ROLE", " SNIPPET", " TIME"} {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}

	for i, r := range results {
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Message.Body
		}
		row := i + 1
		sv.results.SetCell(row, 0, sv.cell(r.Message.Role, 10))
		sv.results.SetCell(row, 1, sv.cell(tview.Escape(snippet), 0))
		sv.results.SetCell(row, 2, sv.cell(formatTimestamp(time.UnixMilli(r.Message.Timestamp)), 12))
	}
}

// SelectedResult returns the session id of the selected result, or "".
func (sv *SearchView) SelectedResult() string {
	idx, _ := sv.results.GetSelection()
	idx--
	if idx < 0 || idx >= len(sv.data) {
		return ""
	}
	return sv.data[idx].Message.SessionID
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
