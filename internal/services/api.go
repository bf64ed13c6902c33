package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://content.hopfner.cc"
	DefaultFieldName = "image"

	tokenPath        = "/api/token/"
	tokenRefreshPath = "/api/token/refresh/"
	tokenVerifyPath  = "/api/token/verify/"
)

var errSessionEnded = errors.New("session ended by a concurrent refresh failure")

// ClientOpts configures a [Client].
type ClientOpts struct {
	BaseURL       string
	HTTPClient    *http.Client
	Store         TokenStore
	Logger        *log.Logger
	RateLimit     float64 // requests per second, 0 disables limiting
	OnAuthFailure func()  // called after tokens are cleared because a refresh was impossible
}

// Client sends requests to the content backend with the stored bearer token.
//
// A 401 triggers one token refresh and one resend of the original request.
// Concurrent refreshes for the same refresh token share a single call.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	store         TokenStore
	logger        *log.Logger
	limiter       *rate.Limiter
	refreshGroup  singleflight.Group
	onAuthFailure func()
}

// NewClient creates a new [Client]. Missing options fall back to the public backend, [http.DefaultClient] and an in-memory token store.
func NewClient(opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Store == nil {
		opts.Store = NewMemoryTokenStore(nil)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		httpClient:    opts.HTTPClient,
		store:         opts.Store,
		logger:        shared.WithLogger(opts.Logger, "component", "api"),
		onAuthFailure: opts.OnAuthFailure,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Store returns the token store used for authenticated requests.
func (c *Client) Store() TokenStore { return c.store }

// request is a fully buffered request so it can be resent after a refresh.
type request struct {
	method      string
	url         string
	body        []byte
	contentType string
	auth        bool
	retried     bool
}

// Get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs an authenticated POST with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put performs an authenticated PUT with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch performs an authenticated PATCH with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do performs an authenticated request. A nil body sends no payload; []byte and [json.RawMessage] are sent verbatim.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newJSONRequest(method, path, body)
	if err != nil {
		return err
	}
	req.auth = true
	return c.do(ctx, req, out)
}

// UploadFile posts the contents of r as multipart form data under fieldName (default "image").
func (c *Client) UploadFile(ctx context.Context, path, fieldName, filename string, r io.Reader, out any) error {
	if fieldName == "" {
		fieldName = DefaultFieldName
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fieldName, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req := &request{
		method:      http.MethodPost,
		url:         c.resolve(path),
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
		auth:        true,
	}
	return c.do(ctx, req, out)
}

// PublicPost performs an unauthenticated POST. It never attaches a token and never retries.
func (c *Client) PublicPost(ctx context.Context, path string, body, out any) error {
	req, err := c.newJSONRequest(http.MethodPost, path, body)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	return resp.decode(out)
}

func (c *Client) newJSONRequest(method, path string, body any) (*request, error) {
	req := &request{method: method, url: c.resolve(path)}
	if body == nil {
		return req, nil
	}

	switch b := body.(type) {
	case []byte:
		req.body = b
	case json.RawMessage:
		req.body = b
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode body: %v", shared.ErrInvalidInput, err)
		}
		req.body = data
	}
	req.contentType = "application/json"
	return req, nil
}

// resolve joins path onto the base URL. Absolute URLs, such as pagination links, are used as is.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, req *request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}

	if resp.status != http.StatusUnauthorized {
		return resp.decode(out)
	}
	if req.retried {
		return &shared.AuthError{Kind: shared.Unauthorized}
	}
	req.retried = true

	// Another request may already have rotated the token while this one was in flight.
	if current := c.accessToken(); current == "" || current == resp.sentToken {
		c.logger.Info("access token rejected, refreshing", "method", req.method, "url", req.url)
		if err := c.refresh(ctx, resp.sentToken); err != nil {
			return err
		}
	}

	resp, err = c.send(ctx, req)
	if err != nil {
		return err
	}
	if resp.status == http.StatusUnauthorized {
		return &shared.AuthError{Kind: shared.Unauthorized}
	}
	return resp.decode(out)
}

type response struct {
	status    int
	body      []byte
	sentToken string
}

func (r *response) decode(out any) error {
	if r.status < 200 || r.status >= 300 {
		return &shared.HTTPError{Status: r.status, Body: r.body}
	}
	if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], r.body...)
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req *request) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	var sent string
	if req.auth {
		tok, err := c.store.Token()
		if err != nil {
			c.logger.Warn("failed to read token store", "error", err)
		} else if tok != nil && tok.AccessToken != "" {
			tok.SetAuthHeader(httpReq)
			sent = tok.AccessToken
		}
	}

	c.logger.Debug("request", "method", req.method, "url", req.url, "auth", sent != "", "retry", req.retried)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &shared.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &shared.NetworkError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return &response{status: resp.StatusCode, body: data, sentToken: sent}, nil
}

func (c *Client) accessToken() string {
	tok, err := c.store.Token()
	if err != nil || tok == nil {
		return ""
	}
	return tok.AccessToken
}

// refresh exchanges the stored refresh token for a new access token.
//
// sent is the access token the rejected request carried. A failed refresh clears the store and reports
// through OnAuthFailure once per flight; callers that find the store already cleared only get the error.
func (c *Client) refresh(ctx context.Context, sent string) error {
	tok, err := c.store.Token()
	if err != nil || tok == nil || tok.RefreshToken == "" {
		if tok != nil {
			c.expire()
		}
		return &shared.AuthError{Kind: shared.NoRefreshToken, Err: err}
	}

	refreshToken := tok.RefreshToken
	_, err, coalesced := c.refreshGroup.Do(refreshToken, func() (any, error) {
		current, _ := c.store.Token()
		if current == nil || current.RefreshToken == "" {
			return nil, errSessionEnded
		}
		if current.AccessToken != "" && current.AccessToken != sent {
			return nil, nil
		}

		if err := c.exchange(ctx, refreshToken); err != nil {
			c.logger.Warn("token refresh failed", "error", err)
			c.expire()
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return &shared.AuthError{Kind: shared.RefreshFailed, Err: err}
	}

	c.logger.Debug("token refreshed", "coalesced", coalesced)
	return nil
}

// exchange posts refreshToken to the refresh endpoint and stores the new pair.
func (c *Client) exchange(ctx context.Context, refreshToken string) error {
	var pair models.TokenPair
	if err := c.PublicPost(context.WithoutCancel(ctx), tokenRefreshPath, map[string]string{"refresh": refreshToken}, &pair); err != nil {
		return err
	}
	if pair.Access == "" {
		return errors.New("refresh response carried no access token")
	}
	if pair.Refresh == "" {
		pair.Refresh = refreshToken
	}
	if err := c.store.SetToken(TokenFromPair(pair.Access, pair.Refresh)); err != nil {
		return fmt.Errorf("failed to store refreshed token: %w", err)
	}
	return nil
}

func (c *Client) expire() {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear token store", "error", err)
	}
	if c.onAuthFailure != nil {
		c.onAuthFailure()
	}
}
