// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/bibsync/internal/tracker"
)

const (
	listWidth  = 80
	listHeight = 18
)

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// now is used for the "failed ... ago" labels.
var now = time.Now

// SelectionAction represents the user's action in the picker.
type SelectionAction int

const (
	// ActionNone indicates no action was taken.
	ActionNone SelectionAction = iota
	// ActionRetry asks for the selected requests to be retried.
	ActionRetry
	// ActionDismiss asks for the selected requests to be cleared from the tracker.
	ActionDismiss
	// ActionCancelled indicates the user quit without choosing.
	ActionCancelled
)

func (a SelectionAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionDismiss:
		return "dismiss"
	case ActionCancelled:
		return "cancelled"
	}
	return "none"
}

// SelectionResult holds the result of the picker.
type SelectionResult struct {
	Action    SelectionAction
	Selection []tracker.FailedRequest
}

type failureItem struct {
	tracker.FailedRequest
	marked bool
}

func (i failureItem) Title() string {
	return i.PublicationID
}

func (i failureItem) FilterValue() string {
	return i.PublicationID
}

func (i failureItem) Description() string {
	return i.LastError
}

// palette uses the 256-colour codes the rest of the picker is drawn with.
var palette = struct {
	accent, focus, text, muted, warn, err lipgloss.Color
}{
	accent: lipgloss.Color("63"),
	focus:  lipgloss.Color("220"),
	text:   lipgloss.Color("252"),
	muted:  lipgloss.Color("245"),
	warn:   lipgloss.Color("179"),
	err:    lipgloss.Color("167"),
}

type itemStyles struct {
	row, focused         lipgloss.Style
	mark, id, count      lipgloss.Style
	identifiers, failure lipgloss.Style
}

func newItemStyles() itemStyles {
	// Rows carry only a left rule; the focused row thickens and recolours it.
	row := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderLeftForeground(palette.muted).
		PaddingLeft(1).
		Foreground(palette.text)

	return itemStyles{
		row:         row,
		focused:     row.Copy().BorderStyle(lipgloss.ThickBorder()).BorderLeftForeground(palette.focus),
		mark:        lipgloss.NewStyle().Foreground(palette.accent).Bold(true),
		id:          lipgloss.NewStyle().Bold(true),
		count:       lipgloss.NewStyle().Foreground(palette.warn),
		identifiers: lipgloss.NewStyle().Foreground(palette.muted),
		failure:     lipgloss.NewStyle().Foreground(palette.err).Italic(true),
	}
}

type failureDelegate struct {
	styles itemStyles
}

func newDelegate() failureDelegate {
	return failureDelegate{styles: newItemStyles()}
}

func (d failureDelegate) Height() int                         { return 3 }
func (d failureDelegate) Spacing() int                        { return 1 }
func (d failureDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d failureDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	failure, ok := item.(failureItem)
	if !ok {
		return
	}

	mark := "[ ]"
	if failure.marked {
		mark = "[x]"
	}
	textWidth := m.Width() - 3
	lines := []string{
		d.styles.mark.Render(mark) + " " + d.styles.id.Render(failure.PublicationID) + "  " + d.styles.count.Render(formatAttempts(failure.RetryCount)),
		d.styles.identifiers.Render(truncate(formatMetadata(failure.FailedRequest), textWidth)),
		d.styles.failure.Render(truncate(failure.LastError, textWidth)),
	}

	style := d.styles.row
	if idx == m.Index() {
		style = d.styles.focused
	}
	_, _ = fmt.Fprint(w, style.Render(strings.Join(lines, "\n")))
}

type model struct {
	list   list.Model
	result SelectionResult
}

func newModel(failures []tracker.FailedRequest) *model {
	listItems := make([]list.Item, len(failures))
	for i, f := range failures {
		listItems[i] = failureItem{FailedRequest: f}
	}

	picker := list.New(listItems, newDelegate(), listWidth, listHeight)
	picker.Title = fmt.Sprintf("%d failed enrichment requests", len(failures))
	picker.Styles.Title = titleStyle
	picker.SetShowStatusBar(false)
	picker.SetFilteringEnabled(false)
	picker.SetShowHelp(false)
	picker.DisableQuitKeybindings()

	return &model{list: picker, result: SelectionResult{Action: ActionNone}}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case " ", "x":
			m.toggleCurrent()
			return m, nil
		case "a":
			m.markAll()
			return m, nil
		case "enter", "r":
			m.finish(ActionRetry)
			return m, tea.Quit
		case "d":
			m.finish(ActionDismiss)
			return m, tea.Quit
		case "ctrl+c", "q", "esc":
			m.result = SelectionResult{Action: ActionCancelled}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(fit(msg.Width-2, listWidth, 40), fit(msg.Height-4, listHeight, 6))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) toggleCurrent() {
	idx := m.list.Index()
	item, ok := m.list.SelectedItem().(failureItem)
	if !ok {
		return
	}
	item.marked = !item.marked
	m.list.SetItem(idx, item)
}

func (m *model) markAll() {
	for i, it := range m.list.Items() {
		if item, ok := it.(failureItem); ok {
			item.marked = true
			m.list.SetItem(i, item)
		}
	}
}

// finish selects the marked items, or the highlighted one when none are marked.
func (m *model) finish(action SelectionAction) {
	var selection []tracker.FailedRequest
	for _, it := range m.list.Items() {
		if item, ok := it.(failureItem); ok && item.marked {
			selection = append(selection, item.FailedRequest)
		}
	}
	if len(selection) == 0 {
		if item, ok := m.list.SelectedItem().(failureItem); ok {
			selection = append(selection, item.FailedRequest)
		}
	}
	m.result = SelectionResult{Action: action, Selection: selection}
}

func (m *model) View() string {
	marked := 0
	for _, it := range m.list.Items() {
		if item, ok := it.(failureItem); ok && item.marked {
			marked++
		}
	}
	status := statusStyle.Render(fmt.Sprintf("%d marked", marked))
	keys := keysStyle.Render("space mark  a all  enter retry  d dismiss  q quit")
	return m.list.View() + "\n" + status + "  " + keys
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(palette.accent).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(palette.focus).Bold(true)
	keysStyle   = lipgloss.NewStyle().Foreground(palette.muted)
)

// SelectFailures lets the user pick tracked failures to retry or dismiss.
// Failures are listed most recent first. An empty input returns ActionNone
// without starting the UI.
func SelectFailures(failures []tracker.FailedRequest) (SelectionResult, error) {
	if len(failures) == 0 {
		return SelectionResult{Action: ActionNone}, nil
	}

	sorted := make([]tracker.FailedRequest, len(failures))
	copy(sorted, failures)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastSeen.After(sorted[j].LastSeen)
	})

	finalModel, err := runProgram(newModel(sorted))
	if err != nil {
		return SelectionResult{}, err
	}

	if typed, ok := finalModel.(*model); ok {
		return typed.result, nil
	}
	return SelectionResult{}, fmt.Errorf("unexpected program result")
}

// truncate collapses whitespace and cuts value to width runes, ending with
// an ellipsis when there is room for one.
func truncate(value string, width int) string {
	runes := []rune(strings.Join(strings.Fields(value), " "))
	switch {
	case width <= 0 || len(runes) <= width:
		return string(runes)
	case width <= 3:
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// formatMetadata lists the identifiers and how long ago the last failure was.
func formatMetadata(f tracker.FailedRequest) string {
	var parts []string
	for _, kind := range f.Identifiers.Kinds() {
		parts = append(parts, fmt.Sprintf("%s:%s", kind, f.Identifiers.Get(kind)))
	}
	if !f.LastSeen.IsZero() {
		parts = append(parts, "failed "+formatAge(now().Sub(f.LastSeen))+" ago")
	}
	if len(parts) == 0 {
		return "No identifiers"
	}
	return strings.Join(parts, " | ")
}

func formatAttempts(retryCount int) string {
	attempts := retryCount + 1
	if attempts == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", attempts)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// fit shrinks preferred to the available space, never below minimum.
// A non-positive available leaves preferred unchanged.
func fit(available, preferred, minimum int) int {
	if available > 0 {
		preferred = min(preferred, available)
	}
	return max(preferred, minimum)
}
