package keys

import "github.com/gdamore/tcell/v2"

// Action binds one key (or rune) to a handler. Description is shown in
// hint lines when Visible.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Visible     bool
	Do          func()
}

func (a Action) matches(ev *tcell.EventKey) bool {
	if a.Key == tcell.KeyRune {
		return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
	}
	return ev.Key() == a.Key
}

// Registry holds an ordered set of bindings, global plus per-page.
// Registration order is hint order.
type Registry struct {
	global []Action
	pages  map[string][]Action
}

func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]Action)}
}

// Global registers a binding active on every page.
func (r *Registry) Global(a Action) {
	r.global = append(r.global, a)
}

// Page registers a binding active only on the named page.
func (r *Registry) Page(page string, a Action) {
	r.pages[page] = append(r.pages[page], a)
}

// Hints lists the visible binding descriptions for a page, page-local
// first, in registration order.
func (r *Registry) Hints(page string) []string {
	var out []string
	for _, a := range append(append([]Action{}, r.pages[page]...), r.global...) {
		if a.Visible {
			out = append(out, a.Description)
		}
	}
	return out
}

// HandleEvent runs the handler of the first binding matching ev on the
// given page. Page bindings shadow global ones. Reports whether a
// binding fired.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, a := range r.pages[page] {
		if a.matches(ev) {
			a.Do()
			return true
		}
	}
	for _, a := range r.global {
		if a.matches(ev) {
			a.Do()
			return true
		}
	}
	return false
}
