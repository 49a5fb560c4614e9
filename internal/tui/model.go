package tui

import (
	"context"
	"log/slog"
	"time"

	"shopadmin/internal/admin"
	"shopadmin/internal/failure"
	"shopadmin/internal/guard"
	"shopadmin/internal/model"
	"shopadmin/internal/notify"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	maxToasts = 3
	toastTTL  = 4 * time.Second
)

type (
	// changedMsg means a cache or the session moved; views re-read their snapshots.
	changedMsg  struct{}
	resolvedMsg struct{ state guard.AuthState }
	toastMsg    struct{ n notify.Notification }
	toastExpiry struct{ at time.Time }

	subscribedMsg struct {
		resource string
		unsub    func()
		err      error
	}

	// opDoneMsg reports the end of an async action started by a key press. then runs on
	// success, inside Update.
	opDoneMsg struct {
		op   string
		err  error
		then func()
	}
)

type appModel struct {
	ctx    context.Context
	panel  *admin.Panel
	queue  *notify.Queue
	logger *slog.Logger

	changes     chan struct{}
	stopSession func()

	width  int
	height int

	auth   guard.AuthState
	route  string
	wanted string

	login    form
	register form
	profile  form
	product  form
	// productFormOpen shows the product create form in place of the list.
	productFormOpen bool
	productDetail   bool

	createInput textinput.Model
	creating    bool
	draft       textinput.Model

	cats  *collectionView[model.Category]
	prods *collectionView[model.Product]
	users *collectionView[model.User]

	toasts []notify.Notification
	status string
}

func newAppModel(ctx context.Context, p *admin.Panel, q *notify.Queue, logger *slog.Logger) *appModel {
	m := &appModel{
		ctx:     ctx,
		panel:   p,
		queue:   q,
		logger:  logger,
		changes: make(chan struct{}, 1),
		route:   guard.PathHome,
		auth:    p.Session.State(),

		login:    newForm(field{label: "Email"}, field{label: "Password", secret: true}),
		register: newForm(field{label: "Username"}, field{label: "Email"}, field{label: "Password", secret: true}),
		profile:  newForm(field{label: "Username"}, field{label: "Email"}, field{label: "New password", secret: true}),
		product: newForm(
			field{label: "Name"},
			field{label: "Brand"},
			field{label: "Category"},
			field{label: "Price"},
			field{label: "Quantity"},
			field{label: "Count in stock"},
			field{label: "Description"},
		),
		createInput: newInput("New category name", false),
		draft:       newInput("", false),
	}
	m.cats = newCollectionView("Categories", p.Categories, p.CategoryDialog, categoryColumns())
	m.prods = newCollectionView("Products", p.Products, p.ProductDialog, productColumns(m.categoryName))
	m.users = newCollectionView("Users", p.Users, p.UserDialog, userColumns())
	m.stopSession = p.Session.OnChange(func(guard.AuthState) { m.signal() })
	return m
}

func (m *appModel) close() {
	if m.stopSession != nil {
		m.stopSession()
	}
	m.releaseAll()
}

// signal wakes the event loop. Coalesces: one pending wake-up is enough because views
// always read the latest snapshot.
func (m *appModel) signal() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func waitForToast(q *notify.Queue) tea.Cmd {
	if q == nil {
		return nil
	}
	return func() tea.Msg { return toastMsg{n: <-q.C()} }
}

func (m *appModel) resolve() tea.Cmd {
	ctx, p := m.ctx, m.panel
	return func() tea.Msg { return resolvedMsg{state: p.Resolve(ctx)} }
}

func (m *appModel) Init() tea.Cmd {
	return tea.Batch(m.resolve(), waitForChange(m.changes), waitForToast(m.queue))
}

func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case resolvedMsg:
		return m, m.syncAuth(msg.state)

	case changedMsg:
		cmd := m.syncAuth(m.panel.Session.State())
		return m, tea.Batch(cmd, waitForChange(m.changes))

	case toastMsg:
		m.toasts = append(m.toasts, msg.n)
		if len(m.toasts) > maxToasts {
			m.toasts = m.toasts[len(m.toasts)-maxToasts:]
		}
		at := msg.n.At
		expire := tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiry{at: at} })
		return m, tea.Batch(expire, waitForToast(m.queue))

	case toastExpiry:
		kept := m.toasts[:0]
		for _, n := range m.toasts {
			if n.At.After(msg.at) {
				kept = append(kept, n)
			}
		}
		m.toasts = kept
		return m, nil

	case subscribedMsg:
		m.onSubscribed(msg)
		return m, nil

	case opDoneMsg:
		return m, m.onOpDone(msg)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

// syncAuth applies a new auth state: subscriptions from the old identity are dropped
// and the current route is re-checked.
func (m *appModel) syncAuth(st guard.AuthState) tea.Cmd {
	changed := st.Status != m.auth.Status || userID(st) != userID(m.auth)
	m.auth = st
	if changed {
		m.releaseAll()
		m.creating = false
		m.productFormOpen = false
		m.productDetail = false
		if st.Status.SignedIn() && m.wanted != "" && (m.route == guard.PathLogin || m.route == guard.PathRegister) {
			m.route, m.wanted = m.wanted, ""
		}
	}
	return m.navigate(m.route)
}

func userID(st guard.AuthState) string {
	if st.User == nil {
		return ""
	}
	return st.User.ID
}

// navigate moves to path, following guard redirects, and starts whatever the view needs.
func (m *appModel) navigate(path string) tea.Cmd {
	d, target := guard.Routes.Decide(path, m.auth.Status)
	switch d {
	case guard.RedirectSignIn:
		m.wanted = path
		path = target
	case guard.RedirectNotAuthorized:
		path = target
	}
	if path != m.route {
		m.status = ""
		m.creating = false
		m.productFormOpen = false
		m.productDetail = false
		m.releaseUnused(path)
	}
	m.route = path
	if d == guard.Suspend {
		// Placeholder until the auth check settles; nothing to load yet.
		return nil
	}

	switch path {
	case guard.PathLogin:
		m.login.focusFirst()
	case guard.PathRegister:
		m.register.focusFirst()
	case guard.PathProfile:
		if m.auth.User != nil && !m.profile.dirty() {
			m.profile.set(0, m.auth.User.Username)
			m.profile.set(1, m.auth.User.Email)
		}
		m.profile.focusFirst()
	case guard.PathCategories:
		return m.cats.ensure(m.ctx, m.signal)
	case guard.PathProducts:
		return tea.Batch(m.prods.ensure(m.ctx, m.signal), m.cats.ensure(m.ctx, m.signal))
	case guard.PathUsers:
		return m.users.ensure(m.ctx, m.signal)
	}
	return nil
}

// releaseUnused drops the subscriptions path does not render, so their caches are torn
// down once no other subscriber holds them.
func (m *appModel) releaseUnused(path string) {
	if !routeUses(path, m.cats.resource()) {
		m.cats.release()
	}
	if !routeUses(path, m.prods.resource()) {
		m.prods.release()
	}
	if !routeUses(path, m.users.resource()) {
		m.users.release()
	}
}

// routeUses reports whether the view at path reads resource. Products name their
// category, so that view keeps categories loaded too.
func routeUses(path, resource string) bool {
	switch path {
	case guard.PathCategories:
		return resource == model.ResourceCategories
	case guard.PathProducts:
		return resource == model.ResourceProducts || resource == model.ResourceCategories
	case guard.PathUsers:
		return resource == model.ResourceUsers
	}
	return false
}

func (m *appModel) releaseAll() {
	m.cats.release()
	m.prods.release()
	m.users.release()
}

func (m *appModel) onSubscribed(msg subscribedMsg) {
	var v interface {
		settle(func(), error)
		release()
	}
	switch msg.resource {
	case m.cats.resource():
		v = m.cats
	case m.prods.resource():
		v = m.prods
	case m.users.resource():
		v = m.users
	default:
		return
	}
	v.settle(msg.unsub, msg.err)
	if !routeUses(m.route, msg.resource) {
		// The view was left while its fetch was in flight.
		v.release()
	}
	if failure.IsAuth(msg.err) {
		m.panel.Session.HandleAuthFailure(failure.KindOf(msg.err))
	}
}

func (m *appModel) onOpDone(msg opDoneMsg) tea.Cmd {
	if msg.err == nil {
		if msg.then != nil {
			msg.then()
		}
		switch msg.op {
		case "login", "register":
			m.login.reset()
			m.register.reset()
			// The session change may not have been delivered yet.
			cmd := m.syncAuth(m.panel.Session.State())
			if m.route == guard.PathLogin || m.route == guard.PathRegister {
				m.wanted = ""
				cmd = tea.Batch(cmd, m.navigate(guard.PathHome))
			}
			return cmd
		case "profile":
			m.profile.submitting = false
			m.profile.clear(2)
			m.status = "Profile updated"
		case "create-product":
			m.product.reset()
			m.productFormOpen = false
		case "create-category":
			m.createInput.SetValue("")
		case "signout":
			m.syncAuth(m.panel.Session.State())
			m.wanted = ""
			return m.navigate(guard.PathLogin)
		}
		return nil
	}

	m.logger.Debug("action failed", "op", msg.op, "err", msg.err)
	text := errorText(msg.err)
	switch msg.op {
	case "login":
		m.login.fail(text)
	case "register":
		m.register.fail(text)
	case "profile":
		m.profile.fail(text)
	case "create-product":
		m.product.fail(text)
	}
	if failure.Is(msg.err, failure.KindForbidden) {
		return m.navigate(guard.PathNotAuthorized)
	}
	return nil
}

// errorText prefers the server's message over the wrapped error chain.
func errorText(err error) string {
	if msg := failure.MessageOf(err); msg != "" {
		return msg
	}
	return err.Error()
}

func (m *appModel) categoryName(id string) string {
	if it, ok := m.cats.coord.Store().Snapshot().Find(id); ok {
		return it.Entity.Name
	}
	return id
}

// categoryByName resolves a product form's category by name or id.
func (m *appModel) categoryByName(s string) (model.Category, bool) {
	snap := m.cats.coord.Store().Snapshot()
	if it, ok := snap.Find(s); ok {
		return it.Entity, true
	}
	for _, it := range snap.Items {
		if equalFold(it.Entity.Name, s) && !it.Pending {
			return it.Entity, true
		}
	}
	return model.Category{}, false
}
