// Package stream consumes server-sent event streams and keeps a display log of received events.
//
// [Reader] parses the wire format. [Consumer] owns one session at a time: events whose type is
// registered in [Handlers] are decoded, logged (heartbeats excepted) and then handed to their handler.
//
// The end of a stream looks the same whether the server finished normally or the connection dropped.
// [Consumer] waits a short grace period after the transport ends before deciding: if an event whose
// type contains "complete" or "error" was seen, or the session was closed meanwhile, the end is benign.
// Otherwise the session records [ConnectionLostMessage] as its error and appends an "error" entry.
package stream
