package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autohaus-heidelberg/website/internal/formatter"
	"github.com/autohaus-heidelberg/website/internal/listing"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/stream"
	"github.com/autohaus-heidelberg/website/internal/tasks"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	EventListView ViewState = iota
	EventDetailView
	ConfirmView
	StreamView
	ResultView
)

// Streamer runs the backend's sync and write streams. [tasks.Engine] implements it.
type Streamer interface {
	Sync(ctx context.Context, c tasks.StreamConsumer, handlers stream.Handlers, prog chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
	Write(ctx context.Context, c tasks.StreamConsumer, eventIDs []string, handlers stream.Handlers, prog chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
}

var _ Streamer = (*tasks.Engine)(nil)

// Options holds the TUI's dependencies.
type Options struct {
	Source      listing.Source
	Streamer    Streamer
	NewConsumer func() tasks.StreamConsumer // a fresh consumer per session
	Handlers    stream.Handlers
	Now         func() time.Time
}

// action is a stream the user asked to start.
type action struct {
	kind  models.StreamKind
	event *models.Event // nil for sync
}

// session is one running stream. Progress and completion arrive on separate channels
// so late progress sends never race a close.
type session struct {
	progress chan tasks.ProgressUpdate
	done     chan Msg
	cancel   context.CancelFunc
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	opts     Options
	view     ViewState
	width    int
	height   int
	loading  bool
	list     list.Model
	selected *models.Event
	detail   viewport.Model
	pending  *action
	session  *session
	snapshot stream.Snapshot
	logView  viewport.Model
	spinner  spinner.Model
	status   string
	result   *tasks.RunResult
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Handlers == nil {
		opts.Handlers = tasks.LogOnly(tasks.DefaultEventTypes...)
	}

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Events"

	return &Model{
		ctx:     ctx,
		opts:    opts,
		view:    EventListView,
		loading: true,
		list:    l,
		detail:  viewport.New(0, 0),
		logView: viewport.New(0, 0),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by loading the event listing.
func (m *Model) Init() tea.Cmd {
	return m.loadEvents()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case EventListView:
			return m.handleListKeys(msg)
		case EventDetailView:
			return m.handleDetailKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case StreamView:
			return m.handleStreamKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != StreamView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgEventsLoaded:
		data := msg.data.(eventsLoaded)
		m.loading = false
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		cmd := m.list.SetItems(eventItems(data.upcoming, data.past))
		return m, cmd

	case MsgProgressUpdate:
		if m.session == nil {
			return m, nil
		}
		update := msg.data.(tasks.ProgressUpdate)
		m.status = update.Message
		if snap, ok := update.Data.(stream.Snapshot); ok {
			m.setSnapshot(snap)
		}
		return m, m.waitForStream()

	case MsgStreamComplete:
		data := msg.data.(streamComplete)
		if m.session != nil {
			m.session.cancel()
			m.session = nil
		}
		m.result = data.result
		m.err = data.err
		if data.result != nil {
			m.setSnapshot(data.result.Snapshot)
		}
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case EventListView:
		return m.renderList()
	case EventDetailView:
		return m.renderDetail()
	case ConfirmView:
		return m.renderConfirm()
	case StreamView:
		return m.renderStream()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.list.SetSize(width-4, height-8)
	m.detail.Width, m.detail.Height = width-4, height-8
	m.logView.Width, m.logView.Height = width-6, height-10
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.sync):
		m.pending = &action{kind: models.StreamSync}
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.list.SelectedItem().(eventItem); ok {
			e := item.event
			m.selected = &e
			m.showDetail(e)
			m.view = EventDetailView
		}
		return m, nil
	}

	return m.updateList(msg)
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = EventListView
		return m, nil
	case key.Matches(msg, m.keys.write):
		if m.selected != nil && m.selected.ID != "" {
			m.pending = &action{kind: models.StreamWrite, event: m.selected}
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = StreamView
		return m, tea.Batch(m.startStream(), m.spinner.Tick)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		if m.pending != nil && m.pending.event != nil {
			m.view = EventDetailView
		} else {
			m.view = EventListView
		}
		m.pending = nil
		return m, nil
	}
	return m, nil
}

// handleStreamKeys only allows stopping the session. The completion message moves on to the result.
func (m *Model) handleStreamKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.session != nil {
		m.status = "Stopping..."
		m.session.cancel()
		return m, nil
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = EventListView
		m.pending = nil
		m.result = nil
		m.err = nil
		m.status = ""
		m.snapshot = stream.Snapshot{}
		m.loading = true
		return m, m.loadEvents()
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != EventListView {
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) showDetail(e models.Event) {
	text, err := formatter.ExportToText(e)
	if err != nil {
		text = []byte(err.Error())
	}
	m.detail.SetContent(string(text))
	m.detail.GotoTop()
}

func (m *Model) setSnapshot(s stream.Snapshot) {
	m.snapshot = s
	m.logView.SetContent(strings.TrimRight(string(formatter.LogsToText(s.Logs)), "\n"))
	m.logView.GotoBottom()
}

func (m *Model) loadEvents() tea.Cmd {
	source, now := m.opts.Source, m.opts.Now
	ctx := m.ctx
	return func() tea.Msg {
		if source == nil {
			return eventsLoadedMsg(nil, nil, fmt.Errorf("no event source configured"))
		}
		events, err := source.Events(ctx)
		if err != nil {
			return eventsLoadedMsg(nil, nil, err)
		}
		upcoming, past := listing.Split(events, now())
		return eventsLoadedMsg(upcoming, past, nil)
	}
}

// startStream launches the pending action in the background and waits for its first update.
func (m *Model) startStream() tea.Cmd {
	if m.opts.Streamer == nil || m.opts.NewConsumer == nil {
		return func() tea.Msg {
			return streamCompleteMsg(nil, fmt.Errorf("streaming is not configured"))
		}
	}

	ctx, cancel := context.WithCancel(m.ctx)
	s := &session{
		progress: make(chan tasks.ProgressUpdate, 50),
		done:     make(chan Msg, 1),
		cancel:   cancel,
	}
	m.session = s
	m.snapshot = stream.Snapshot{}
	m.result = nil
	m.err = nil
	m.status = "Connecting..."
	m.logView.SetContent("")

	act, streamer, consumer, handlers := *m.pending, m.opts.Streamer, m.opts.NewConsumer(), m.opts.Handlers
	go func() {
		var (
			result *tasks.RunResult
			err    error
		)
		if act.kind == models.StreamWrite {
			result, err = streamer.Write(ctx, consumer, []string{act.event.ID}, handlers, s.progress)
		} else {
			result, err = streamer.Sync(ctx, consumer, handlers, s.progress)
		}
		s.done <- streamCompleteMsg(result, err)
	}()

	return m.waitForStream()
}

func (m *Model) waitForStream() tea.Cmd {
	s := m.session
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-s.progress:
			return progressUpdateMsg(update)
		case msg := <-s.done:
			return msg
		}
	}
}

func (m *Model) renderList() string {
	if m.loading {
		return styles.help.Render("Loading events...")
	}
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.sync, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.list.View(), helpView)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return ""
	}
	title := styles.title.Render(m.selected.Title)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.write, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.detail.View(), helpView)
}

func (m *Model) renderConfirm() string {
	if m.pending == nil {
		return ""
	}

	var title, info string
	if m.pending.kind == models.StreamWrite {
		title = styles.title.Render(fmt.Sprintf("Write '%s' to the website?", m.pending.event.Title))
		info = fmt.Sprintf("\nEvent: %s\nDate: %s\nKey: %s\n", m.pending.event.ID, m.pending.event.Date, listing.Key(*m.pending.event))
	} else {
		title = styles.title.Render("Sync events from the backend?")
		info = "\nThe backend pulls every event and reports its progress here.\n"
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderStream() string {
	name := "Sync"
	if m.pending != nil && m.pending.kind == models.StreamWrite {
		name = "Write"
	}
	title := styles.title.Render(fmt.Sprintf("%s stream", name))

	state := "connecting"
	switch {
	case m.snapshot.Connected:
		state = "connected"
	case !m.snapshot.Loading && m.snapshot.Error != "":
		state = "failed"
	}

	header := fmt.Sprintf("%s %s  %d events", m.spinner.View(), state, len(m.snapshot.Logs))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n%s\n%s\n%s\n\n%s", title, header, styles.help.Render(m.status), styles.frame.Render(m.logView.View()), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Stream failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	var title string
	switch snap := m.result.Snapshot; {
	case m.result.Failure != nil:
		title = styles.err.Render("✗ " + m.result.Failure.Message)
	case snap.Error != "":
		title = styles.err.Render(snap.Error)
	case snap.Completed:
		title = styles.ok.Render("✓ Stream complete")
	default:
		title = styles.warn.Render("Stream closed without completing")
	}

	info := fmt.Sprintf("\n%d events received", len(m.result.Logs))
	if run := m.result.Run; run != nil {
		info += fmt.Sprintf("\nRun #%d: %s", run.Sequence(), run.Status())
	}

	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, info, styles.frame.Render(m.logView.View()), helpView)
}
