package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the text input for submitting prompts.
type Composer struct {
	*tview.InputField
	onSend func(text string)
}

// NewComposer creates a new prompt composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		text := strings.TrimSpace(c.GetText())
		if text == "" {
			return
		}
		c.onSend(text)
		c.SetText("")
	})

	return c
}

// SetOnSend sets the callback when a prompt is submitted.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetBusy changes the prompt label to show a reply is streaming. Input
// stays enabled; the send pipeline ignores overlapping sends per session.
func (c *Composer) SetBusy(busy bool) {
	if busy {
		c.SetLabel(" ~ ")
	} else {
		c.SetLabel(" > ")
	}
}
