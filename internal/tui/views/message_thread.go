package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the transcript of the active session.
type MessageThread struct {
	*tview.TextView
	theme *ui.Theme
}

// NewMessageThread creates a new transcript view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Conversation ")
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)

	return &MessageThread{TextView: tv, theme: theme}
}

// SetSessionTitle updates the view title.
func (mt *MessageThread) SetSessionTitle(title string) {
	if title == "" {
		title = "Conversation"
	}
	mt.SetTitle(fmt.Sprintf(" %s ", title))
}

// Update re-renders the transcript.
func (mt *MessageThread) Update(msgs []*chat.Message) {
	mt.Clear()

	for _, m := range msgs {
		mt.renderMessage(m)
	}
	mt.ScrollToEnd()
}

func (mt *MessageThread) renderMessage(m *chat.Message) {
	who := "You"
	if m.Role == chat.RoleAssistant {
		who = "RFP GPT"
	}

	header := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]", who, formatTimestamp(m.CreatedAt))
	switch m.Status {
	case chat.StatusSending:
		header += " [::d](thinking...)[-:-:-]"
	case chat.StatusError:
		header += " [red](failed)[-]"
	}
	_, _ = fmt.Fprintf(mt, "%s\n%s\n", header, tview.Escape(m.Content))

	if len(m.Sources) > 0 {
		_, _ = fmt.Fprintf(mt, "[%s]Sources:[-]\n", colorTag(mt.theme.SourceColor))
		for _, s := range m.Sources {
			_, _ = fmt.Fprintf(mt, "  - %s (%.0f%%)\n", tview.Escape(s.Title), s.Score*100)
		}
	}
	if len(m.FollowUps) > 0 && m.Status == chat.StatusDelivered && m.Role == chat.RoleAssistant {
		_, _ = fmt.Fprintf(mt, "[%s]Try asking:[-]\n", colorTag(mt.theme.FollowUpColor))
		for _, q := range m.FollowUps {
			_, _ = fmt.Fprintf(mt, "  ? %s\n", tview.Escape(q))
		}
	}
	_, _ = fmt.Fprint(mt, "\n")
}

func colorTag(c tcell.Color) string {
	for name, color := range tcell.ColorNames {
		if color == c {
			return name
		}
	}
	return "white"
}
