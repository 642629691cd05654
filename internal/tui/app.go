package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/tui/keys"
	"github.com/rfpgpt/rfpgpt/internal/tui/model"
	"github.com/rfpgpt/rfpgpt/internal/tui/ui"
	"github.com/rfpgpt/rfpgpt/internal/tui/views"
	"github.com/rivo/tview"
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	registry  *keys.Registry
	theme     *ui.Theme
	defaults  chat.Settings
	statusBar *views.StatusBar
	sessions  *views.SessionList
	thread    *views.MessageThread
	composer  *views.Composer
	docPanel  *views.DocumentPanel
	uploadIn  *tview.InputField
	searchV   *views.SearchView
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(vm *model.ViewModel, profileName string, defaults chat.Settings) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        vm,
		registry:  keys.NewRegistry(),
		theme:     theme,
		defaults:  defaults,
		statusBar: views.NewStatusBar(theme),
		sessions:  views.NewSessionList(theme),
		thread:    views.NewMessageThread(theme),
		composer:  views.NewComposer(),
		docPanel:  views.NewDocumentPanel(theme),
		searchV:   views.NewSearchView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.uploadIn = tview.NewInputField().
		SetLabel(" Upload path: ").
		SetFieldWidth(0)

	a.statusBar.SetProfile(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.Global(keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Do: func() { a.app.Stop() },
	})
	a.registry.Global(keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:search", Visible: true,
		Do: func() { a.showSearch() },
	})
	a.registry.Page("sessions", keys.Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:new", Visible: true,
		Do: func() { a.newSession() },
	})
	a.registry.Page("sessions", keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:delete", Visible: true,
		Do: func() { a.deleteSelected() },
	})
	a.registry.Page("chat", keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Description: "o:documents", Visible: true,
		Do: func() { a.showDocuments() },
	})
	a.registry.Page("chat", keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:dismiss error", Visible: true,
		Do: func() { a.vm.ClearBanner() },
	})
	a.registry.Page("documents", keys.Action{
		Rune: 'u', Key: tcell.KeyRune,
		Description: "u:upload", Visible: true,
		Do: func() { a.app.SetFocus(a.uploadIn) },
	})
}

func (a *App) setupCallbacks() {
	a.sessions.SetSelectedFunc(func(row, col int) {
		if sess := a.sessions.Selected(); sess != nil {
			a.openSession(sess)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(a.ctx, text); err != nil {
				a.vm.Flash.Err(err)
			}
			a.redraw()
		}()
	})

	a.uploadIn.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		path := a.uploadIn.GetText()
		if path == "" {
			return
		}
		a.uploadIn.SetText("")
		a.app.SetFocus(a.docPanel)
		go func() {
			if err := a.vm.UploadPath(a.ctx, path); err != nil {
				a.vm.Flash.Err(err)
			} else {
				a.vm.Flash.Info("Upload finished")
			}
			a.redraw()
		}()
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			results, err := a.vm.SearchArchive(query)
			if err != nil {
				a.vm.Flash.Err(err)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(results)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	docFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.docPanel, 0, 1, true).
		AddItem(a.uploadIn, 1, 0, false)

	a.pages.AddPage("sessions", a.sessions, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("documents", docFlex, true, false)
	a.pages.AddPage("search", a.searchV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat", "search":
				a.pages.SwitchToPage("sessions")
				a.app.SetFocus(a.sessions)
				return nil
			case "documents":
				a.pages.SwitchToPage("chat")
				a.app.SetFocus(a.thread)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

func (a *App) openSession(sess *chat.Session) {
	go func() {
		if err := a.vm.SwitchTo(a.ctx, sess); err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetSessionTitle(sess.Title)
			a.thread.Update(a.vm.Messages())
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

func (a *App) newSession() {
	go func() {
		if err := a.vm.NewSession(a.ctx, "New session", a.defaults); err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			if sess := a.vm.Current(); sess != nil {
				a.thread.SetSessionTitle(sess.Title)
			}
			a.thread.Update(a.vm.Messages())
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

func (a *App) deleteSelected() {
	sess := a.sessions.Selected()
	if sess == nil {
		return
	}
	go func() {
		if err := a.vm.DeleteSession(a.ctx, sess.ID); err != nil {
			a.vm.Flash.Err(err)
		}
		a.redraw()
	}()
}

func (a *App) showDocuments() {
	a.docPanel.Update(a.vm.Documents())
	a.pages.SwitchToPage("documents")
	a.app.SetFocus(a.docPanel)
}

func (a *App) showSearch() {
	a.pages.SwitchToPage("search")
	a.app.SetFocus(a.searchV.Input())
}

// redraw refreshes the current page from the view model.
func (a *App) redraw() {
	a.app.QueueUpdateDraw(func() {
		currentPage, _ := a.pages.GetFrontPage()
		active := ""
		title := ""
		if sess := a.vm.Current(); sess != nil {
			active = sess.ID
			title = sess.Title
		}

		switch currentPage {
		case "sessions":
			a.sessions.Update(a.vm.Sessions(), active)
		case "chat":
			a.thread.Update(a.vm.Messages())
		case "documents":
			a.docPanel.Update(a.vm.Documents())
		}

		a.statusBar.SetSession(title)
		a.statusBar.SetBusy(a.vm.Sending())
		a.composer.SetBusy(a.vm.Sending())
		a.statusBar.SetBanner(a.vm.Banner())
		a.statusBar.SetFlash(a.vm.Flash.GetMessage())
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	a.vm.Start(a.ctx)

	go func() {
		if err := a.vm.LoadSessions(a.ctx); err != nil {
			a.vm.Flash.Err(err)
		}
		a.redraw()
		a.startRefreshLoop()
	}()

	return a.app.Run()
}

// startRefreshLoop redraws on store mutations and keeps the clock and
// flash expiry current.
func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(2 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-a.vm.RefreshCh():
				a.redraw()
			case <-ticker.C:
				a.redraw()
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
