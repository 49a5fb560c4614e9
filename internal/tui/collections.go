package tui

import (
	"context"
	"fmt"
	"strings"

	"shopadmin/internal/cache"
	"shopadmin/internal/failure"
	"shopadmin/internal/model"
	"shopadmin/internal/mutate"
	"shopadmin/internal/selection"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type column[T any] struct {
	title string
	width int
	cell  func(T) string
}

// collectionView is one admin table: its cache subscription, cursor and edit dialog.
type collectionView[T model.Record[T]] struct {
	title   string
	coord   *mutate.Coordinator[T]
	dialog  *selection.Machine[T]
	columns []column[T]

	cursor  int
	unsub   func()
	loading bool
	err     string
}

func newCollectionView[T model.Record[T]](title string, c *mutate.Coordinator[T], d *selection.Machine[T], cols []column[T]) *collectionView[T] {
	return &collectionView[T]{title: title, coord: c, dialog: d, columns: cols}
}

func (v *collectionView[T]) resource() string { return v.coord.Store().Resource() }

func (v *collectionView[T]) snapshot() cache.Collection[T] { return v.coord.Store().Snapshot() }

// ensure subscribes on first use and refetches when the cache was cleared under an
// existing subscription.
func (v *collectionView[T]) ensure(ctx context.Context, signal func()) tea.Cmd {
	if v.loading {
		return nil
	}
	st := v.coord.Store()
	res := st.Resource()
	if v.unsub == nil {
		v.loading = true
		return func() tea.Msg {
			unsub, err := st.Subscribe(ctx, func(cache.Collection[T]) { signal() })
			return subscribedMsg{resource: res, unsub: unsub, err: err}
		}
	}
	if !st.Snapshot().Loaded {
		v.loading = true
		return func() tea.Msg {
			return subscribedMsg{resource: res, err: st.Refresh(ctx)}
		}
	}
	return nil
}

func (v *collectionView[T]) settle(unsub func(), err error) {
	v.loading = false
	v.err = ""
	if err != nil {
		v.err = errorText(err)
	}
	if unsub == nil {
		return
	}
	if v.unsub != nil {
		unsub()
		return
	}
	v.unsub = unsub
}

func (v *collectionView[T]) release() {
	if v.unsub != nil {
		v.unsub()
		v.unsub = nil
	}
	v.loading = false
	v.err = ""
	v.cursor = 0
}

func (v *collectionView[T]) selected() (cache.Item[T], bool) {
	items := v.snapshot().Items
	if len(items) == 0 {
		return cache.Item[T]{}, false
	}
	v.cursor = min(max(v.cursor, 0), len(items)-1)
	return items[v.cursor], true
}

func (v *collectionView[T]) move(delta int) {
	n := len(v.snapshot().Items)
	if n == 0 {
		v.cursor = 0
		return
	}
	v.cursor = min(max(v.cursor+delta, 0), n-1)
}

// updateCollection handles list navigation and the edit dialog. rename builds the update
// payload from the dialog draft; extra handles view-specific keys and reports whether it
// consumed the key.
func updateCollection[T model.Record[T]](m *appModel, v *collectionView[T], msg tea.KeyMsg, rename func(T, string) T, extra func(string) (tea.Cmd, bool)) tea.Cmd {
	ctx := m.ctx
	if st := v.dialog.State(); st.DialogOpen {
		switch msg.String() {
		case "esc":
			v.dialog.Close()
			m.draft.Blur()
			return nil
		case "enter":
			if st.Submitting {
				return nil
			}
			payload := rename(st.Entity, strings.TrimSpace(st.Draft))
			d := v.dialog
			return func() tea.Msg {
				_, err := d.SubmitUpdate(ctx, payload)
				return opDoneMsg{op: "update", err: err}
			}
		case "ctrl+d":
			if st.Submitting {
				return nil
			}
			d := v.dialog
			return func() tea.Msg {
				_, err := d.SubmitDelete(ctx)
				return opDoneMsg{op: "delete", err: err}
			}
		case "ctrl+r":
			return retryFailed(m, v, st.Entity.EntityID())
		case "ctrl+x":
			v.coord.Discard(st.Entity.EntityID())
			return nil
		}
		var cmd tea.Cmd
		m.draft, cmd = m.draft.Update(msg)
		_ = v.dialog.SetDraft(m.draft.Value())
		return cmd
	}

	switch msg.String() {
	case "up", "k", "ctrl+p":
		v.move(-1)
		return nil
	case "down", "j", "ctrl+n":
		v.move(1)
		return nil
	case "home", "g":
		v.cursor = 0
		return nil
	case "end", "G":
		v.move(len(v.snapshot().Items))
		return nil
	case "r":
		st := v.coord.Store()
		res := st.Resource()
		return func() tea.Msg { return subscribedMsg{resource: res, err: st.Refresh(ctx)} }
	case "enter", "e":
		it, ok := v.selected()
		if !ok || it.Pending {
			return nil
		}
		if err := v.dialog.Select(it.Entity); err != nil {
			m.status = err.Error()
			return nil
		}
		m.draft.SetValue(v.dialog.State().Draft)
		m.draft.CursorEnd()
		return m.draft.Focus()
	case "ctrl+d", "x":
		it, ok := v.selected()
		if !ok || it.Pending {
			return nil
		}
		c := v.coord
		id := it.Entity.EntityID()
		return func() tea.Msg {
			_, err := c.Delete(ctx, id)
			return opDoneMsg{op: "delete", err: err}
		}
	case "R":
		if it, ok := v.selected(); ok {
			return retryFailed(m, v, it.Entity.EntityID())
		}
		return nil
	case "D":
		if it, ok := v.selected(); ok {
			v.coord.Discard(it.Entity.EntityID())
		}
		return nil
	}
	if extra != nil {
		if cmd, ok := extra(msg.String()); ok {
			return cmd
		}
	}
	return nil
}

// failedRetryable reports whether id has a retained failed change and whether issuing it
// again could succeed.
func (v *collectionView[T]) failedRetryable(id string) (failed, retryable bool) {
	f, ok := v.coord.Failed(id)
	if !ok {
		return false, false
	}
	return true, failure.Retryable(f.Err)
}

// retryFailed re-issues the retained failed change for id. A dialog still showing id
// closes once the retry lands.
func retryFailed[T model.Record[T]](m *appModel, v *collectionView[T], id string) tea.Cmd {
	if _, ok := v.failedRetryable(id); !ok || v.coord.Pending(id) {
		return nil
	}
	ctx, c, d := m.ctx, v.coord, v.dialog
	return func() tea.Msg {
		_, err := c.Retry(ctx, id)
		return opDoneMsg{op: "retry", err: err, then: func() {
			if st := d.State(); st.DialogOpen && st.Entity.EntityID() == id {
				d.Close()
				m.draft.Blur()
			}
		}}
	}
}

func (v *collectionView[T]) view(width, height int) string {
	snap := v.snapshot()
	var b strings.Builder

	switch {
	case v.err != "":
		b.WriteString(styleToast(false).Render(v.err) + "\n")
	case v.loading && !snap.Loaded:
		b.WriteString(styleMuted().Render("Loading "+strings.ToLower(v.title)+"...") + "\n")
		return b.String()
	}

	var head []string
	for _, c := range v.columns {
		head = append(head, padRight(c.title, c.width))
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(truncate("  "+strings.Join(head, "  "), width)) + "\n")

	if len(snap.Items) == 0 {
		b.WriteString(styleMuted().Render("  (none)") + "\n")
		return b.String()
	}

	// Keep the cursor visible when the table is taller than the body.
	rows := max(height-2, 3)
	start := 0
	if v.cursor >= rows {
		start = v.cursor - rows + 1
	}
	end := min(len(snap.Items), start+rows)

	for i := start; i < end; i++ {
		it := snap.Items[i]
		var cells []string
		for _, c := range v.columns {
			cells = append(cells, padRight(c.cell(it.Entity), c.width))
		}
		line := "  " + strings.Join(cells, "  ")
		if it.Pending {
			line += "  (saving)"
		} else if failed, _ := v.failedRetryable(it.Entity.EntityID()); failed {
			line += "  (failed)"
		}
		line = truncate(line, width)
		switch {
		case i == v.cursor:
			line = styleSelected().Render(padRight(line, width))
		case it.Pending:
			line = stylePending().Render(line)
		}
		b.WriteString(line + "\n")
	}
	if len(snap.Items) > rows {
		b.WriteString(styleMuted().Render(fmt.Sprintf("  %d/%d", v.cursor+1, len(snap.Items))) + "\n")
	}
	return b.String()
}

func (v *collectionView[T]) dialogView(m *appModel, label string, width int) string {
	st := v.dialog.State()
	if !st.DialogOpen {
		return ""
	}
	m.draft.Width = max(min(width-12, 60), 16)
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Edit "+st.Entity.DisplayName()) + "\n\n")
	b.WriteString(label + "  " + m.draft.View() + "\n")
	switch {
	case st.Submitting:
		b.WriteString("\n" + styleMuted().Render("Saving..."))
	case st.Err != nil:
		b.WriteString("\n" + styleToast(false).Render(errorText(st.Err)))
	}
	help := "enter: save  ctrl+d: delete  esc: close"
	if failed, retryable := v.failedRetryable(st.Entity.EntityID()); failed {
		if retryable {
			help += "  ctrl+r: retry"
		}
		help += "  ctrl+x: discard"
	}
	b.WriteString("\n" + styleMuted().Render(help))
	return styleDialog().Render(b.String())
}

func categoryColumns() []column[model.Category] {
	return []column[model.Category]{
		{title: "Name", width: 32, cell: func(c model.Category) string { return c.Name }},
		{title: "ID", width: 16, cell: func(c model.Category) string { return c.ID }},
	}
}

func productColumns(categoryName func(string) string) []column[model.Product] {
	return []column[model.Product]{
		{title: "Name", width: 24, cell: func(p model.Product) string { return p.Name }},
		{title: "Brand", width: 14, cell: func(p model.Product) string { return p.Brand }},
		{title: "Category", width: 14, cell: func(p model.Product) string { return categoryName(p.Category) }},
		{title: "Price", width: 9, cell: func(p model.Product) string { return fmt.Sprintf("%.2f", p.Price) }},
		{title: "Stock", width: 6, cell: func(p model.Product) string { return fmt.Sprint(p.CountInStock) }},
	}
}

func userColumns() []column[model.User] {
	return []column[model.User]{
		{title: "Username", width: 18, cell: func(u model.User) string { return u.Username }},
		{title: "Email", width: 28, cell: func(u model.User) string { return u.Email }},
		{title: "Admin", width: 5, cell: func(u model.User) string {
			if u.IsAdmin {
				return "yes"
			}
			return "no"
		}},
	}
}

func renameCategory(c model.Category, name string) model.Category {
	c.Name = name
	return c
}

func renameProduct(p model.Product, name string) model.Product {
	p.Name = name
	return p
}

func renameUser(u model.User, name string) model.User {
	u.Username = name
	return u
}
