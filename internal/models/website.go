package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// WebsiteGroup is the backend group whose members may manage content.
const WebsiteGroup = "website"

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is returned by the token and refresh endpoints. Refresh is empty when the backend does not rotate it.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// User is the authenticated account returned by /api/user/.
type User struct {
	ID        int      `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Groups    []string `json:"groups"`
}

// HasWebsiteGroup reports whether the user belongs to [WebsiteGroup].
func (u *User) HasWebsiteGroup() bool {
	return u != nil && slices.Contains(u.Groups, WebsiteGroup)
}

// DisplayName prefers the full name over the username.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// Artist is a performer attached to one or more events.
type Artist struct {
	ID          int    `json:"id,omitempty" toml:"id,omitempty"`
	Name        string `json:"name" toml:"name"`
	Image       string `json:"image,omitempty" toml:"image,omitempty"`
	ImageURL    string `json:"image_url,omitempty" toml:"image_url,omitempty"`
	Link        string `json:"link,omitempty" toml:"link,omitempty"`
	Description string `json:"description,omitempty" toml:"description,omitempty"`
	SoundCloud  string `json:"soundcloud,omitempty" toml:"soundcloud,omitempty"`
	YouTube     string `json:"youtube,omitempty" toml:"youtube,omitempty"`
	Bandcamp    string `json:"bandcamp,omitempty" toml:"bandcamp,omitempty"`
}

// Event is a show listing. Date is an ISO-8601 local timestamp such as 2024-05-16T20:00:00.
type Event struct {
	ID               string   `json:"id" toml:"id"`
	User             *int     `json:"user,omitempty" toml:"-"`
	UserUsername     string   `json:"user_username,omitempty" toml:"-"`
	Date             string   `json:"date" toml:"date"`
	Title            string   `json:"title" toml:"title"`
	Image            string   `json:"image,omitempty" toml:"img,omitempty"`
	ImageURL         string   `json:"image_url,omitempty" toml:"image_url,omitempty"`
	DescriptionShort string   `json:"descriptionShort" toml:"descriptionShort"`
	DescriptionLong  string   `json:"descriptionLong,omitempty" toml:"descriptionLong,omitempty"`
	Fee              string   `json:"fee,omitempty" toml:"fee,omitempty"`
	FeeAk            string   `json:"feeAk,omitempty" toml:"feeAk,omitempty"`
	ShopLink         string   `json:"shopLink,omitempty" toml:"shopLink,omitempty"`
	ArtistOrder      string   `json:"artistOrder,omitempty" toml:"artistOrder,omitempty"`
	Artists          []Artist `json:"artists" toml:"artists"`
	ArtistIDs        []int    `json:"artist_ids,omitempty" toml:"-"`
	ArtistCount      int      `json:"artist_count,omitempty" toml:"-"`
}

var eventDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Start parses Date. Timestamps without an offset are interpreted in loc.
func (e Event) Start(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.ParseInLocation(layout, e.Date, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable event date %q", e.Date)
}

// PosterURL returns the absolute image URL when the backend provides one, else the stored image path.
func (e Event) PosterURL() string {
	if e.ImageURL != "" {
		return e.ImageURL
	}
	return e.Image
}

// ChecklistPhase is the point in an event's lifecycle a checklist item belongs to.
type ChecklistPhase string

const (
	PhaseBefore ChecklistPhase = "before"
	PhaseDuring ChecklistPhase = "during"
	PhaseAfter  ChecklistPhase = "after"
)

// Valid reports whether p is a known phase.
func (p ChecklistPhase) Valid() bool {
	switch p {
	case PhaseBefore, PhaseDuring, PhaseAfter:
		return true
	}
	return false
}

// ChecklistStatus is the progress of a checklist instance item.
type ChecklistStatus string

const (
	StatusInitial    ChecklistStatus = "initial"
	StatusInProgress ChecklistStatus = "inProgress"
	StatusBlocked    ChecklistStatus = "blocked"
	StatusDone       ChecklistStatus = "done"
)

// Valid reports whether s is a known status.
func (s ChecklistStatus) Valid() bool {
	switch s {
	case StatusInitial, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// ChecklistTemplateItem is copied into every new event's checklist.
type ChecklistTemplateItem struct {
	ID                int            `json:"id,omitempty"`
	Name              string         `json:"name"`
	Stage             string         `json:"stage"`
	Phase             ChecklistPhase `json:"phase"`
	Created           string         `json:"created,omitempty"`
	CreatedBy         *int           `json:"created_by,omitempty"`
	CreatedByUsername string         `json:"created_by_username,omitempty"`
}

// ChecklistInstanceItem is one task of a specific event.
type ChecklistInstanceItem struct {
	ID               int             `json:"id,omitempty"`
	Name             string          `json:"name"`
	Stage            string          `json:"stage"`
	Phase            ChecklistPhase  `json:"phase"`
	Status           ChecklistStatus `json:"status"`
	Created          string          `json:"created,omitempty"`
	Modified         string          `json:"modified,omitempty"`
	EditedBy         *int            `json:"edited_by,omitempty"`
	EditedByUsername string          `json:"edited_by_username,omitempty"`
	Event            string          `json:"event"`
}

// SettingContent is the free-form body of a [Setting]; "content" holds the primary text.
type SettingContent map[string]any

// Content returns the "content" field as a string.
func (c SettingContent) Content() string {
	s, _ := c["content"].(string)
	return s
}

// Setting is a named block of editable site content.
type Setting struct {
	ID      int            `json:"id,omitempty"`
	Name    string         `json:"name"`
	Setting SettingContent `json:"setting"`
}

// Paginated is the envelope returned by list endpoints.
type Paginated[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasNext reports whether another page exists.
func (p *Paginated[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}
