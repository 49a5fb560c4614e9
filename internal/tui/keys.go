package tui

import (
	"errors"
	"strconv"
	"strings"

	"shopadmin/internal/apiclient"
	"shopadmin/internal/guard"
	"shopadmin/internal/model"

	tea "github.com/charmbracelet/bubbletea"
)

// typing reports whether keys go to a text input rather than to navigation.
func (m *appModel) typing() bool {
	switch m.route {
	case guard.PathLogin, guard.PathRegister, guard.PathProfile:
		return true
	case guard.PathCategories:
		return m.creating || m.cats.dialog.State().DialogOpen
	case guard.PathProducts:
		return m.productFormOpen || m.prods.dialog.State().DialogOpen
	case guard.PathUsers:
		return m.users.dialog.State().DialogOpen
	}
	return false
}

func (m *appModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if !m.typing() {
		switch msg.String() {
		case "q":
			return tea.Quit
		case "h":
			return m.navigate(guard.PathHome)
		case "1":
			return m.navigate(guard.PathCategories)
		case "2":
			return m.navigate(guard.PathProducts)
		case "3":
			return m.navigate(guard.PathUsers)
		case "p":
			return m.navigate(guard.PathProfile)
		case "l":
			if !m.auth.Status.SignedIn() {
				return m.navigate(guard.PathLogin)
			}
		case "o":
			if m.auth.Status.SignedIn() {
				return m.signOut()
			}
		}
	}

	switch m.route {
	case guard.PathLogin:
		return m.updateLogin(msg)
	case guard.PathRegister:
		return m.updateRegister(msg)
	case guard.PathProfile:
		return m.updateProfile(msg)
	case guard.PathCategories:
		return m.updateCategories(msg)
	case guard.PathProducts:
		return m.updateProducts(msg)
	case guard.PathUsers:
		return updateCollection(m, m.users, msg, renameUser, m.userKeys)
	}
	return nil
}

func (m *appModel) signOut() tea.Cmd {
	ctx, p := m.ctx, m.panel
	return func() tea.Msg { return opDoneMsg{op: "signout", err: p.SignOut(ctx)} }
}

func (m *appModel) updateLogin(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		return m.navigate(guard.PathHome)
	case "ctrl+r":
		return m.navigate(guard.PathRegister)
	}
	cmd, submit := m.login.update(msg)
	if !submit || !m.login.begin() {
		return cmd
	}
	cred := model.Credentials{Email: m.login.value(0), Password: m.login.raw(1)}
	ctx, p := m.ctx, m.panel
	return func() tea.Msg {
		_, err := p.SignIn(ctx, cred)
		return opDoneMsg{op: "login", err: err}
	}
}

func (m *appModel) updateRegister(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		return m.navigate(guard.PathHome)
	case "ctrl+l":
		return m.navigate(guard.PathLogin)
	}
	cmd, submit := m.register.update(msg)
	if !submit || !m.register.begin() {
		return cmd
	}
	reg := model.Registration{Username: m.register.value(0), Email: m.register.value(1), Password: m.register.raw(2)}
	ctx, p := m.ctx, m.panel
	return func() tea.Msg {
		_, err := p.Register(ctx, reg)
		return opDoneMsg{op: "register", err: err}
	}
}

func (m *appModel) updateProfile(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "esc" {
		return m.navigate(guard.PathHome)
	}
	cmd, submit := m.profile.update(msg)
	if !submit || !m.profile.begin() {
		return cmd
	}
	upd := apiclient.ProfileUpdate{
		Username: m.profile.value(0),
		Email:    m.profile.value(1),
		Password: m.profile.raw(2),
	}
	if upd.Password != "" && len(upd.Password) < 6 {
		m.profile.fail("Password must be at least 6 characters")
		return nil
	}
	ctx, p := m.ctx, m.panel
	return func() tea.Msg {
		_, err := p.UpdateProfile(ctx, upd)
		return opDoneMsg{op: "profile", err: err}
	}
}

func (m *appModel) updateCategories(msg tea.KeyMsg) tea.Cmd {
	if m.creating {
		switch msg.String() {
		case "esc":
			m.creating = false
			m.createInput.Blur()
			return nil
		case "enter":
			name := strings.TrimSpace(m.createInput.Value())
			m.creating = false
			m.createInput.Blur()
			ctx, c := m.ctx, m.panel.Categories
			return func() tea.Msg {
				_, err := c.Create(ctx, model.Category{Name: name})
				return opDoneMsg{op: "create-category", err: err}
			}
		}
		var cmd tea.Cmd
		m.createInput, cmd = m.createInput.Update(msg)
		return cmd
	}
	return updateCollection(m, m.cats, msg, renameCategory, func(key string) (tea.Cmd, bool) {
		if key != "n" {
			return nil, false
		}
		m.creating = true
		m.createInput.SetValue("")
		return m.createInput.Focus(), true
	})
}

func (m *appModel) updateProducts(msg tea.KeyMsg) tea.Cmd {
	if m.productFormOpen {
		if msg.String() == "esc" {
			m.productFormOpen = false
			return nil
		}
		cmd, submit := m.product.update(msg)
		if !submit {
			return cmd
		}
		p, err := m.productFromForm()
		if err != nil {
			m.product.fail(err.Error())
			return nil
		}
		if !m.product.begin() {
			return nil
		}
		ctx, c := m.ctx, m.panel.Products
		return func() tea.Msg {
			_, err := c.Create(ctx, p)
			return opDoneMsg{op: "create-product", err: err}
		}
	}
	if m.productDetail && msg.String() == "esc" {
		m.productDetail = false
		return nil
	}
	return updateCollection(m, m.prods, msg, renameProduct, func(key string) (tea.Cmd, bool) {
		switch key {
		case "n":
			m.productFormOpen = true
			m.productDetail = false
			m.product.focusFirst()
			return nil, true
		case "v", " ":
			m.productDetail = !m.productDetail
			return nil, true
		}
		return nil, false
	})
}

func (m *appModel) productFromForm() (model.Product, error) {
	f := &m.product
	p := model.Product{
		Name:        f.value(0),
		Brand:       f.value(1),
		Description: f.value(6),
	}
	if s := f.value(2); s != "" {
		cat, ok := m.categoryByName(s)
		if !ok {
			return p, errors.New("Unknown category " + strconv.Quote(s))
		}
		p.Category = cat.ID
	}
	var err error
	if p.Price, err = parseFloat(f.value(3), "Price"); err != nil {
		return p, err
	}
	if p.Quantity, err = parseInt(f.value(4), "Quantity"); err != nil {
		return p, err
	}
	if p.CountInStock, err = parseInt(f.value(5), "Count in stock"); err != nil {
		return p, err
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func parseFloat(s, label string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New(label + " must be a number")
	}
	return v, nil
}

func parseInt(s, label string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(label + " must be a whole number")
	}
	return v, nil
}

func (m *appModel) userKeys(key string) (tea.Cmd, bool) {
	if key != "a" {
		return nil, false
	}
	it, ok := m.users.selected()
	if !ok || it.Pending {
		return nil, true
	}
	u := it.Entity
	u.IsAdmin = !u.IsAdmin
	ctx, c := m.ctx, m.panel.Users
	return func() tea.Msg {
		_, err := c.Update(ctx, u.ID, u)
		return opDoneMsg{op: "update", err: err}
	}, true
}
