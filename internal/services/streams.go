package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/autohaus-heidelberg/website/internal/shared"
	"golang.org/x/oauth2"
)

const (
	DefaultSyncPath  = "/api/events/sync/stream/"
	DefaultWritePath = "/api/events/write/stream/"
)

// StreamService builds event stream URLs. Streams cannot carry headers, so the access token travels as a query parameter.
type StreamService struct {
	baseURL   string
	syncPath  string
	writePath string
	tokens    oauth2.TokenSource
}

// NewStreamService creates a new [StreamService]. Empty paths fall back to the defaults.
func NewStreamService(baseURL, syncPath, writePath string, store TokenStore) *StreamService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if syncPath == "" {
		syncPath = DefaultSyncPath
	}
	if writePath == "" {
		writePath = DefaultWritePath
	}
	return &StreamService{
		baseURL:   strings.TrimRight(baseURL, "/"),
		syncPath:  syncPath,
		writePath: writePath,
		tokens:    NewTokenSource(store),
	}
}

// SyncURL returns the read-only sync stream URL.
func (s *StreamService) SyncURL() (string, error) {
	return s.build(s.syncPath, nil)
}

// WriteURL returns the write stream URL for the given events.
func (s *StreamService) WriteURL(eventIDs []string) (string, error) {
	if len(eventIDs) == 0 {
		return "", fmt.Errorf("%w: event ids", shared.ErrMissingArgument)
	}
	return s.build(s.writePath, eventIDs)
}

// Redact strips the token parameter from a stream URL so it can be logged or stored.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Del("token")
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *StreamService) build(path string, eventIDs []string) (string, error) {
	tok, err := s.tokens.Token()
	if err != nil {
		return "", err
	}

	var query string
	if len(eventIDs) > 0 {
		query = "event_ids=" + url.QueryEscape(strings.Join(eventIDs, ",")) + "&"
	}
	query += "token=" + url.QueryEscape(tok.AccessToken)
	return s.baseURL + path + "?" + query, nil
}
