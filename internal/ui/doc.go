// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for pushing events to the website:
//  1. [EventListView] : Browse upcoming and past events, or start a sync
//  2. [EventDetailView] : Read an event before writing it
//  3. [ConfirmView] : Confirm the write or sync
//  4. [StreamView] : Follow the live stream log
//  5. [ResultView] : Show how the session ended and its full log
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Stream progress flows through a channel from the [Streamer], and the session result arrives on its own channel.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, w, s, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
