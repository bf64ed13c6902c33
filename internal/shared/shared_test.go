package shared

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestTruncate(t *testing.T) {
	tc := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "shorter than limit", in: "Socke", n: 10, want: "Socke"},
		{name: "exact limit", in: "Socke", n: 5, want: "Socke"},
		{name: "cut with ellipsis", in: "Busted Head Racket", n: 6, want: "Buste…"},
		{name: "multibyte runes", in: "Südstadt", n: 4, want: "Süd…"},
		{name: "zero disables", in: "Socke", n: 0, want: "Socke"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("Truncate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyAndReadFile(t *testing.T) {
	t.Run("reads regular file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "poster.json")
		if err := os.WriteFile(path, []byte(`{"ok":true}`), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		data, err := VerifyAndReadFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := ValidateJSON(data); err != nil {
			t.Errorf("expected valid JSON, got %v", err)
		}
	})

	t.Run("rejects directory", func(t *testing.T) {
		if _, err := VerifyAndReadFile(t.TempDir()); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects empty path", func(t *testing.T) {
		if _, err := VerifyAndReadFile(""); !errors.Is(err, ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestErrors(t *testing.T) {
	t.Run("AuthError matches kind sentinel", func(t *testing.T) {
		tc := []struct {
			kind AuthErrorKind
			want error
		}{
			{NoRefreshToken, ErrNoRefreshToken},
			{RefreshFailed, ErrRefreshFailed},
			{Unauthorized, ErrUnauthorized},
		}
		for _, tt := range tc {
			t.Run(tt.kind.String(), func(t *testing.T) {
				err := fmt.Errorf("wrapped: %w", &AuthError{Kind: tt.kind})
				if !errors.Is(err, tt.want) {
					t.Errorf("expected errors.Is(%v, %v)", err, tt.want)
				}
			})
		}
	})

	t.Run("AuthError keeps cause", func(t *testing.T) {
		cause := &HTTPError{Status: 400, Body: []byte(`{"detail":"bad"}`)}
		err := &AuthError{Kind: RefreshFailed, Err: cause}
		if StatusCode(err) != 400 {
			t.Errorf("expected status 400 through AuthError, got %d", StatusCode(err))
		}
	})

	t.Run("HTTPError", func(t *testing.T) {
		err := &HTTPError{Status: 404, Body: []byte("nope")}
		if !errors.Is(err, ErrAPIRequest) {
			t.Error("expected HTTPError to match ErrAPIRequest")
		}
		if err.Error() != "API request failed: status 404, body: nope" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("NetworkError", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := &NetworkError{Err: cause}
		if !errors.Is(err, ErrNetwork) || !errors.Is(err, cause) {
			t.Error("expected NetworkError to match ErrNetwork and its cause")
		}
	})

	t.Run("PayloadDecodeError", func(t *testing.T) {
		err := &PayloadDecodeError{Event: "progress", Data: "{", Err: errors.New("unexpected end")}
		if !errors.Is(err, ErrPayloadDecode) {
			t.Error("expected PayloadDecodeError to match ErrPayloadDecode")
		}
	})
}
