package keys

import "github.com/gdamore/tcell/v2"

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Label       string // key as shown to the user, e.g. "Enter"
	Description string
	Handler     func()
	Hidden      bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Name returns the label, or the rune for rune bindings.
func (a *Action) Name() string {
	if a.Label != "" {
		return a.Label
	}
	if a.Key == tcell.KeyRune {
		return string(a.Rune)
	}
	return tcell.KeyNames[a.Key]
}

// Registry holds keybindings per page, in registration order. Page
// bindings take precedence over global ones.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(a *Action) {
	r.global = append(r.global, a)
}

// AddPage registers a binding active on page only.
func (r *Registry) AddPage(page string, a *Action) {
	r.pages[page] = append(r.pages[page], a)
}

// Global returns the global bindings.
func (r *Registry) Global() []*Action { return r.global }

// Page returns the bindings of page.
func (r *Registry) Page(page string) []*Action { return r.pages[page] }

// Hints returns "key:description" for the visible bindings of page
// followed by the global ones.
func (r *Registry) Hints(page string) []string {
	var hints []string
	for _, set := range [][]*Action{r.pages[page], r.global} {
		for _, a := range set {
			if !a.Hidden {
				hints = append(hints, a.Name()+":"+a.Description)
			}
		}
	}
	return hints
}

// HandleEvent dispatches a key event to the first matching action of page
// or the global set. It reports whether a handler ran.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, set := range [][]*Action{r.pages[page], r.global} {
		for _, a := range set {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	return false
}
