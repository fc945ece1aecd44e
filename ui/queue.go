package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/agnosto/fbtweeter/db/models"
)

type QueueState int

const (
	QueueListState QueueState = iota
	QueueDetailState
)

// Loader returns the unpublished records, oldest first.
type Loader func(ctx context.Context) ([]models.PostRecord, error)

type recordsLoadedMsg struct {
	records []models.PostRecord
	err     error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f5c2e7"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89dceb"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#b4befe"))
	detailStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#cba6f7")).Padding(0, 1)
)

// QueueModel browses the records waiting to be tweeted.
type QueueModel struct {
	load    Loader
	records []models.PostRecord
	table   table.Model
	keys    keyMap
	help    help.Model
	state   QueueState
	loading bool
	err     error
	width   int
	height  int
	now     func() time.Time
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding
	Quit    key.Binding
	Refresh key.Binding
	Back    key.Binding
	Select  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Select},
		{k.Down, k.Back},
		{k.Help, k.Refresh},
		{k.Quit},
	}
}

var defaultKeyMap = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload queue"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back to list"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "show post"),
	),
}

func NewQueueModel(load Loader) *QueueModel {
	m := &QueueModel{
		load:    load,
		keys:    defaultKeyMap,
		help:    help.New(),
		state:   QueueListState,
		loading: true,
		height:  24,
		now:     time.Now,
	}
	m.updateTable()
	return m
}

func (m *QueueModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m *QueueModel) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		records, err := load(ctx)
		return recordsLoadedMsg{records: records, err: err}
	}
}

func (m *QueueModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.updateTable()
		return m, nil
	case recordsLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.records = msg.records
		}
		m.updateTable()
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Back):
			m.state = QueueListState
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			m.state = QueueListState
			return m, m.loadCmd()
		case key.Matches(msg, m.keys.Select):
			if m.Selected() != nil {
				m.state = QueueDetailState
			}
			return m, nil
		case key.Matches(msg, m.keys.Up):
			if len(m.records) > 0 {
				m.table.MoveUp(1)
			}
			return m, nil
		case key.Matches(msg, m.keys.Down):
			if len(m.records) > 0 {
				m.table.MoveDown(1)
			}
			return m, nil
		}
	}
	return m, nil
}

// Selected returns the record under the cursor, or nil when the queue is empty.
func (m *QueueModel) Selected() *models.PostRecord {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.records) {
		return nil
	}
	return &m.records[i]
}

func (m *QueueModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Queued posts (%d)", len(m.records))) + "\n")

	switch {
	case m.loading:
		sb.WriteString(mutedStyle.Render("Loading queue...") + "\n")
	case m.err != nil:
		sb.WriteString(errorStyle.Render("Error loading queue: "+m.err.Error()) + "\n")
	case len(m.records) == 0:
		sb.WriteString(mutedStyle.Render("Nothing left to tweet.") + "\n")
	case m.state == QueueDetailState:
		sb.WriteString(m.renderDetail() + "\n")
	default:
		sb.WriteString(m.table.View() + "\n")
	}

	sb.WriteString("\n" + m.help.View(m.keys))
	return sb.String()
}

func (m *QueueModel) renderDetail() string {
	post := m.Selected()
	if post == nil {
		return ""
	}
	lines := []string{
		labelStyle.Render("Post ") + post.ID,
		labelStyle.Render("Created ") + post.CreatedTime.Local().Format("2006-01-02 15:04") +
			mutedStyle.Render(" ("+humanize.RelTime(post.CreatedTime, m.now(), "ago", "from now")+")"),
		labelStyle.Render("Image ") + post.ImageURL,
		"",
		post.Text,
	}
	style := detailStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m *QueueModel) updateTable() {
	textWidth := 60
	if m.width > 0 {
		textWidth = max(20, m.width-22-18-12)
	}
	columns := []table.Column{
		{Title: "Post", Width: 22},
		{Title: "Created", Width: 18},
		{Title: "Text", Width: textWidth},
	}

	rows := make([]table.Row, len(m.records))
	for i, post := range m.records {
		rows[i] = table.Row{
			post.ID,
			humanize.RelTime(post.CreatedTime, m.now(), "ago", "from now"),
			strings.ReplaceAll(post.Text, "\n", " "),
		}
	}

	tableHeight := max(3, m.height-8)

	cursor := m.table.Cursor()
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(tableHeight),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("#cba6f7")).
		Bold(false)
	t.SetStyles(s)
	if cursor > 0 && cursor < len(rows) {
		t.SetCursor(cursor)
	}

	m.table = t
}
