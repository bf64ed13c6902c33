// Package models defines domain entities and persistence interfaces for the venue admin client.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): structs mirroring the content backend's JSON
//   - [Event] and [Artist] : show listings and their performers
//   - [ChecklistTemplateItem] and [ChecklistInstanceItem] : per-event task lists
//   - [Setting] : named content blocks edited in the admin area
//   - [User] and [TokenPair] : the authenticated account
//   - [Paginated] : the count/next/previous/results envelope of list endpoints
//
// 2. Persistent Entities: local database records with lifecycle management
//   - [StreamRun] : one observed sync/write event stream and its log
//
// Persistent entities implement the [Model] interface; [Repository] defines standard CRUD access.
package models
