package tui

import (
	"fmt"
	"strings"

	"shopadmin/internal/guard"
	"shopadmin/internal/model"
	"shopadmin/internal/notify"

	"github.com/charmbracelet/lipgloss"
)

func (m *appModel) View() string {
	width := m.width
	if width < 40 {
		width = 80
	}
	height := m.height
	if height < 12 {
		height = 24
	}

	header := m.headerView(width)
	footer := styleMuted().Render(truncate(m.footerHelp(), width))
	toasts := m.toastsView(width)

	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(footer) - lipgloss.Height(toasts) - 3
	body := m.bodyView(width, max(bodyHeight, 4))

	parts := []string{header, body}
	if toasts != "" {
		parts = append(parts, toasts)
	}
	parts = append(parts, footer)
	return strings.Join(parts, "\n\n")
}

func (m *appModel) headerView(width int) string {
	var nav []string
	for _, r := range guard.Routes.Visible(m.auth.Status) {
		title := r.Title
		if r.Path == m.route {
			title = styleSelected().Render(" " + title + " ")
		} else {
			title = " " + title + " "
		}
		nav = append(nav, title)
	}
	who := "signed out"
	switch {
	case !m.auth.Status.Resolved():
		who = "checking session"
	case m.auth.User != nil:
		who = m.auth.User.DisplayName()
		if m.auth.User.IsAdmin {
			who += " (admin)"
		}
	}
	left := styleHeader().Render("Shop Admin") + " " + strings.Join(nav, "")
	right := styleMuted().Render(who)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return truncate(left, width)
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *appModel) bodyView(width, height int) string {
	if d, _ := guard.Routes.Decide(m.route, m.auth.Status); d == guard.Suspend {
		return styleMuted().Render("Checking session...")
	}

	var body string
	switch m.route {
	case guard.PathHome:
		body = m.homeView()
	case guard.PathLogin:
		body = m.login.view("Sign in", width) + "\n\n" + styleMuted().Render("ctrl+r: create an account instead")
	case guard.PathRegister:
		body = m.register.view("Register", width) + "\n\n" + styleMuted().Render("ctrl+l: sign in instead")
	case guard.PathNotAuthorized:
		body = styleToast(false).Render("Not authorized") + "\n\n" + "This view needs an admin account."
	case guard.PathProfile:
		body = m.profile.view("Profile", width)
	case guard.PathCategories:
		body = m.categoriesView(width, height)
	case guard.PathProducts:
		body = m.productsView(width, height)
	case guard.PathUsers:
		body = m.users.titleLine("Users") + "\n" + m.users.view(width, height-2)
		if d := m.users.dialogView(m, "Username", width); d != "" {
			body += "\n" + d
		}
	}
	if m.status != "" {
		body += "\n" + styleMuted().Render(m.status)
	}
	return body
}

func (m *appModel) homeView() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Welcome"))
	b.WriteString("\n\n")
	if !m.auth.Status.SignedIn() {
		b.WriteString("Press l to sign in.")
		return b.String()
	}
	fmt.Fprintf(&b, "Signed in as %s.\n", m.auth.User.DisplayName())
	if m.auth.Status == guard.StatusAdmin {
		b.WriteString("\n1 Categories   2 Products   3 Users   p Profile")
	} else {
		b.WriteString("\np Profile")
	}
	return b.String()
}

func (m *appModel) categoriesView(width, height int) string {
	var b strings.Builder
	b.WriteString(m.cats.titleLine("Categories") + "\n")
	if m.creating {
		m.createInput.Width = max(min(width-10, 48), 16)
		b.WriteString("New: " + m.createInput.View() + "\n")
	}
	b.WriteString(m.cats.view(width, height-3))
	if d := m.cats.dialogView(m, "Name", width); d != "" {
		b.WriteString("\n" + d)
	}
	return b.String()
}

func (m *appModel) productsView(width, height int) string {
	if m.productFormOpen {
		return m.product.view("New product", width) + "\n\n" +
			styleMuted().Render("Category accepts a name or id. enter on the last field: create  esc: cancel")
	}
	var b strings.Builder
	b.WriteString(m.prods.titleLine("Products") + "\n")
	if m.productDetail {
		if it, ok := m.prods.selected(); ok {
			b.WriteString(m.productDetailView(it.Entity, width))
			return b.String()
		}
	}
	b.WriteString(m.prods.view(width, height-2))
	if d := m.prods.dialogView(m, "Name", width); d != "" {
		b.WriteString("\n" + d)
	}
	return b.String()
}

func (m *appModel) productDetailView(p model.Product, width int) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(p.Name) + "\n")
	meta := []string{
		"Brand: " + p.Brand,
		"Category: " + m.categoryName(p.Category),
		fmt.Sprintf("Price: %.2f", p.Price),
		fmt.Sprintf("Quantity: %d", p.Quantity),
		fmt.Sprintf("In stock: %d", p.CountInStock),
	}
	if p.Image != "" {
		meta = append(meta, "Image: "+p.Image)
	}
	b.WriteString(styleMuted().Render(truncate(strings.Join(meta, "  ·  "), width)) + "\n")
	if desc := renderMarkdown(p.Description, width-2); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}
	return b.String()
}

func (v *collectionView[T]) titleLine(title string) string {
	n := len(v.snapshot().Items)
	return lipgloss.NewStyle().Bold(true).Render(title) + styleMuted().Render(fmt.Sprintf("  %d", n))
}

func (m *appModel) toastsView(width int) string {
	if len(m.toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.toasts))
	for _, n := range m.toasts {
		lines = append(lines, styleToast(n.Level != notify.LevelError).Render(truncate(n.Message, width)))
	}
	return strings.Join(lines, "\n")
}

func (m *appModel) footerHelp() string {
	switch m.route {
	case guard.PathLogin, guard.PathRegister, guard.PathProfile:
		return "tab: next field  enter: submit  esc: back  ctrl+c: quit"
	case guard.PathCategories:
		if m.creating {
			return "enter: create  esc: cancel"
		}
		return "j/k: move  enter: edit  n: new  x: delete  R/D: retry/discard failed  r: reload  h/1/2/3/p: views  o: sign out  q: quit"
	case guard.PathProducts:
		return "j/k: move  enter: edit  v: details  n: new  x: delete  R/D: retry/discard failed  r: reload  h/1/2/3/p: views  o: sign out  q: quit"
	case guard.PathUsers:
		return "j/k: move  enter: rename  a: toggle admin  x: delete  R/D: retry/discard failed  r: reload  h/1/2/3/p: views  o: sign out  q: quit"
	}
	if m.auth.Status.SignedIn() {
		return "h/1/2/3/p: views  o: sign out  q: quit"
	}
	return "l: sign in  q: quit"
}
