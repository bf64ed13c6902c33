package ui

import (
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/tasks"
	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgEventsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgStreamComplete
)

type eventsLoaded struct {
	upcoming []models.Event
	past     []models.Event
	err      error
}

type streamComplete struct {
	result *tasks.RunResult
	err    error
}

// eventsLoadedMsg is the constructor for [MsgEventsLoaded]
func eventsLoadedMsg(upcoming, past []models.Event, err error) Msg {
	return Msg{kind: MsgEventsLoaded, data: eventsLoaded{upcoming, past, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// streamCompleteMsg is the constructor for [MsgStreamComplete]
func streamCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgStreamComplete, data: streamComplete{result, err}}
}
