package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/telesync/internal/tui/keys"
	"github.com/matheus3301/telesync/internal/tui/model"
	"github.com/matheus3301/telesync/internal/tui/ui"
	"github.com/matheus3301/telesync/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageChats  = "chats"
	pageChat   = "chat"
	pageSearch = "search"
	pageHelp   = "help"
)

const (
	callTimeout   = 10 * time.Second
	flashDuration = 5 * time.Second
	watchRetry    = 3 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	registry  *keys.Registry
	statusBar *views.StatusBar
	chatList  *views.ChatList
	msgView   *views.MessageView
	composer  *views.Composer
	searchV   *views.SearchView
	helpV     *views.HelpView
	back      string
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application for the daemon d.
func NewApp(d model.Daemon, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(d),
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(theme),
		chatList:  views.NewChatList(theme, "Chats"),
		msgView:   views.NewMessageView(theme),
		composer:  views.NewComposer(theme),
		searchV:   views.NewSearchView(theme),
		helpV:     views.NewHelpView(theme),
		back:      pageChats,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.helpV.Render(a.helpSections())
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "quit",
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "help",
		Handler: a.showHelp,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 's', Description: "search",
		Handler: a.showSearch,
	})

	a.registry.AddPage(pageChats, &keys.Action{
		Key: tcell.KeyEnter, Label: "Enter", Description: "open",
		Handler: func() { a.openChat(a.chatList.SelectedChat()) },
	})
	a.registry.AddPage(pageChats, &keys.Action{
		Key: tcell.KeyRune, Rune: 'L', Description: "load more",
		Handler: func() { a.run("Load chats", a.vm.LoadMoreChats) },
	})
	a.registry.AddPage(pageChats, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "refresh", Hidden: true,
		Handler: func() { a.run("Refresh", a.vm.LoadChats) },
	})

	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "write",
		Handler: func() { a.app.SetFocus(a.composer.InputField) },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'm', Description: "older",
		Handler: a.loadOlder,
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'R', Description: "mark read",
		Handler: func() { a.run("Mark read", a.vm.MarkRead) },
	})

	a.registry.AddPage(pageSearch, &keys.Action{
		Key: tcell.KeyRune, Rune: 'j', Description: "join",
		Handler: a.joinSelected,
	})
	a.registry.AddPage(pageSearch, &keys.Action{
		Key: tcell.KeyEnter, Label: "Enter", Description: "open",
		Handler: func() { a.openChat(a.searchV.Results().SelectedChat()) },
	})
}

func (a *App) setupCallbacks() {
	a.composer.SetOnSend(func(text string) {
		a.run("Send", func(ctx context.Context) error { return a.vm.Send(ctx, text) })
	})
	a.composer.SetOnCommand(a.execute)

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
			defer cancel()
			results, err := a.vm.Search(ctx, query)
			if err != nil {
				a.vm.Flash.Error("Search failed: "+err.Error(), flashDuration)
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
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageChats, a.chatList, true, true)
	a.pages.AddPage(pageChat, chatFlex, true, false)
	a.pages.AddPage(pageSearch, a.searchV, true, false)
	a.pages.AddPage(pageHelp, a.helpV, true, false)
	a.statusBar.SetHints(a.registry.Hints(pageChats))

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()
		focused := a.app.GetFocus()

		if event.Key() == tcell.KeyEscape {
			switch {
			case focused == a.composer.InputField:
				a.app.SetFocus(a.msgView)
			case page == pageChat:
				a.closeChat()
			case page == pageSearch && focused != a.searchV.Input():
				a.app.SetFocus(a.searchV.Input())
			case page != pageChats:
				a.switchTo(a.back)
			}
			return nil
		}

		// Text inputs get every other key.
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) helpSections() []views.HelpSection {
	section := func(title string, actions []*keys.Action) views.HelpSection {
		s := views.HelpSection{Title: title}
		for _, act := range actions {
			s.Entries = append(s.Entries, views.HelpEntry{Key: act.Name(), Description: act.Description})
		}
		return s
	}
	return []views.HelpSection{
		section("Global", a.registry.Global()),
		section("Chat list", a.registry.Page(pageChats)),
		section("Chat", a.registry.Page(pageChat)),
		section("Search", a.registry.Page(pageSearch)),
		{Title: "Composer commands", Entries: commandHelp},
	}
}

func (a *App) switchTo(page string) {
	a.pages.SwitchToPage(page)
	a.statusBar.SetHints(a.registry.Hints(page))
	switch page {
	case pageChats:
		a.app.SetFocus(a.chatList)
	case pageChat:
		a.app.SetFocus(a.msgView)
	case pageSearch:
		a.app.SetFocus(a.searchV.Input())
	case pageHelp:
		a.app.SetFocus(a.helpV)
	}
}

func (a *App) showSearch() {
	a.back = pageChats
	a.switchTo(pageSearch)
}

func (a *App) showHelp() {
	if page, _ := a.pages.GetFrontPage(); page != pageHelp {
		a.back = page
	}
	a.switchTo(pageHelp)
}

// run calls fn with a bounded context in the background and flashes its
// error.
func (a *App) run(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		defer cancel()
		if err := fn(ctx); err != nil && a.ctx.Err() == nil {
			a.vm.Flash.Error(what+" failed: "+err.Error(), flashDuration)
		}
	}()
}

func (a *App) openChat(id int64) {
	if id == 0 {
		return
	}
	title := a.chatList.Title(id)
	if title == "" {
		title = a.searchV.Results().Title(id)
	}
	a.msgView.SetChatName(title)
	a.msgView.Update(nil, 0)
	a.back = pageChats
	a.switchTo(pageChat)
	a.run("Open chat", func(ctx context.Context) error { return a.vm.OpenChat(ctx, id) })
}

func (a *App) closeChat() {
	a.run("Close chat", a.vm.CloseChat)
	a.switchTo(pageChats)
}

func (a *App) loadOlder() {
	a.run("Load older", func(ctx context.Context) error {
		n, err := a.vm.LoadOlder(ctx)
		if err == nil && n == 0 {
			a.vm.Flash.Info("No older messages", flashDuration)
		}
		return err
	})
}

func (a *App) joinSelected() {
	id := a.searchV.Results().SelectedChat()
	if id == 0 {
		return
	}
	a.run("Join", func(ctx context.Context) error {
		if err := a.vm.Join(ctx, id); err != nil {
			return err
		}
		a.vm.Flash.Info("Joined", flashDuration)
		return nil
	})
}

// execute runs a composer command.
func (a *App) execute(line string) {
	cmd := ParseCommand(line)
	messageID := func() (int64, bool) {
		id, err := strconv.ParseInt(cmd.Args, 10, 64)
		if err != nil {
			a.vm.Flash.Error(fmt.Sprintf("/%s needs a message id", cmd.Name), flashDuration)
			return 0, false
		}
		return id, true
	}

	switch cmd.Name {
	case "more":
		a.loadOlder()
	case "read":
		a.run("Mark read", a.vm.MarkRead)
	case "delete":
		if id, ok := messageID(); ok {
			a.run("Delete", func(ctx context.Context) error { return a.vm.Delete(ctx, id) })
		}
	case "download":
		if id, ok := messageID(); ok {
			a.run("Download", func(ctx context.Context) error {
				path, err := a.vm.Download(ctx, id)
				if err == nil {
					a.vm.Flash.Info("Saved "+path, flashDuration)
				}
				return err
			})
		}
	case "close":
		a.closeChat()
	case "help":
		a.showHelp()
	case "quit":
		a.Stop()
	default:
		a.vm.Flash.Error("Unknown command /"+cmd.Name, flashDuration)
	}
}

// render pushes the model changes into the views. It runs on the UI
// goroutine.
func (a *App) render(c model.Change) {
	if c&model.ChangedStatus != 0 {
		if st := a.vm.Status(); st != nil {
			a.statusBar.SetConnection(st.Connection, st.ConnectionTitle)
		}
	}
	if c&model.ChangedChats != 0 {
		a.chatList.Update(a.vm.Chats())
	}
	if c&model.ChangedMessages != 0 {
		msgs, readOutbox := a.vm.Messages()
		a.msgView.Update(msgs, readOutbox)
	}
	a.statusBar.SetFlash(a.vm.Flash.Get())
}

func (a *App) loop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.Changes():
			c := a.vm.Drain()
			a.app.QueueUpdateDraw(func() { a.render(c) })
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() { a.render(0) })
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the TUI application and blocks until it quits.
func (a *App) Run() error {
	go a.loop()
	go a.vm.Watch(a.ctx, watchRetry)
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		defer cancel()
		if err := a.vm.LoadStatus(ctx); err != nil {
			a.vm.Flash.Error("Daemon unreachable: "+err.Error(), flashDuration)
			return
		}
		if err := a.vm.LoadChats(ctx); err != nil {
			a.vm.Flash.Error("Load chats failed: "+err.Error(), flashDuration)
		}
	}()

	err := a.app.Run()
	a.cancel()
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
