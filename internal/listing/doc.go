// Package listing builds the public upcoming/past event listing.
//
// Events come from a [Source]: either a hand-maintained TOML file ([FileSource]) or the content
// backend ([APISource]), which can fall back to a local cache when the backend is unreachable.
//
// Public event pages are addressed by a hash of date and title ([Key]); [Find] accepts either that
// hash or the backend id.
package listing
