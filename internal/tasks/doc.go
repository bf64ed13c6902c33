// Package tasks orchestrates long-running admin operations with real-time progress reporting.
//
// # Core Operations
//
//  1. [WatchStream] : observe one event stream session until it ends
//     - Connects a [StreamConsumer] to an authenticated stream URL
//     - Forwards every state change as a [ProgressUpdate]
//     - Disconnects when the context is cancelled
//
//  2. [Engine.Sync] and [Engine.Write] : watch the backend's sync or write stream
//     - Build the stream URL from the token store
//     - Record the session and its log through a [RunRecorder], with the token removed from the URL
//
//  3. [Engine.RefreshCache] : fetch all events and store them for offline listing
//
//  4. [Engine.ExportEvents] : export events to json, csv, markdown or txt with a worker pool
//     - Poster downloads are rate limited
//     - A manifest summarizes successes and failures
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// Updates use select with default to prevent blocking; a slow reader misses intermediate updates.
//
// # Recording
//
// Recording and caching failures are logged and never abort the operation they accompany.
package tasks
