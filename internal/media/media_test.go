package media

import (
	"errors"
	"strconv"
	"testing"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
)

func TestEventHash(t *testing.T) {
	tc := []struct {
		name  string
		date  string
		title string
		want  string
	}{
		{name: "empty", date: "", title: "", want: "0"},
		{name: "single char", date: "a", title: "", want: "97"},
		{name: "two chars", date: "a", title: "b", want: "3105"},
		{name: "concatenates date and title", date: "2024-05-16T20:00:00", title: "Socke", want: EventHash("2024-05-16T20:00:00Socke", "")},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := EventHash(tt.date, tt.title); got != tt.want {
				t.Errorf("EventHash() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("hello matches the classic string hash", func(t *testing.T) {
		if got := EventHash("hello", ""); got != "99162322" {
			t.Errorf("EventHash(hello) = %v, want 99162322", got)
		}
	})

	t.Run("astral runes hash as surrogate pairs", func(t *testing.T) {
		// U+1F94A encodes as 0xD83E 0xDD4A
		want := int32(0xD83E)*31 + int32(0xDD4A)
		if got := EventHash("🥊", ""); got != strconv.Itoa(int(want)) {
			t.Errorf("EventHash(🥊) = %v, want %v", got, want)
		}
	})
}

func TestYouTubeEmbed(t *testing.T) {
	tc := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "embed passes through", in: "https://www.youtube.com/embed/Eu6Qv_ySFgo?si=cGZX-9ECsip4VDQZ", want: "https://www.youtube.com/embed/Eu6Qv_ySFgo?si=cGZX-9ECsip4VDQZ"},
		{name: "watch link", in: "https://www.youtube.com/watch?v=6dM2rAb-RL8&list=abc", want: "https://www.youtube.com/embed/6dM2rAb-RL8"},
		{name: "short link", in: "https://youtu.be/hpMjJ-4r-iM?si=xyz", want: "https://www.youtube.com/embed/hpMjJ-4r-iM"},
		{name: "short link with time", in: "https://youtu.be/hpMjJ-4r-iM?t=42", want: "https://www.youtube.com/embed/hpMjJ-4r-iM?start=42"},
		{name: "shorts", in: "https://youtube.com/shorts/Eu6Qv_ySFgo", want: "https://www.youtube.com/embed/Eu6Qv_ySFgo"},
		{name: "music", in: "https://music.youtube.com/watch?v=6dM2rAb-RL8", want: "https://www.youtube.com/embed/6dM2rAb-RL8"},
		{name: "iframe snippet", in: `<iframe width="560" src="https://www.youtube.com/embed/6dM2rAb-RL8" frameborder="0"></iframe>`, want: "https://www.youtube.com/embed/6dM2rAb-RL8"},
		{name: "channel page", in: "https://www.youtube.com/@thewhiffs", wantErr: true},
		{name: "other host", in: "https://vimeo.com/12345", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := YouTubeEmbed(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("YouTubeEmbed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBandcampEmbed(t *testing.T) {
	tc := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "player passes through",
			in:   "https://bandcamp.com/EmbeddedPlayer/album=3272968982/size=large/bgcol=333333/linkcol=9a64ff/transparent=true/",
			want: "https://bandcamp.com/EmbeddedPlayer/album=3272968982/size=large/bgcol=333333/linkcol=9a64ff/transparent=true/",
		},
		{
			name: "iframe snippet",
			in:   `<iframe style="border: 0; width: 350px;" src="https://bandcamp.com/EmbeddedPlayer/album=114426192/size=large/bgcol=ffffff/linkcol=0687f5/tracklist=false/transparent=true/" seamless><a href="x">y</a></iframe>`,
			want: "https://bandcamp.com/EmbeddedPlayer/album=114426192/size=large/bgcol=ffffff/linkcol=0687f5/tracklist=false/transparent=true/",
		},
		{
			name: "album reference",
			in:   "album=725028460",
			want: "https://bandcamp.com/EmbeddedPlayer/album=725028460/size=large/bgcol=ffffff/linkcol=0687f5/tracklist=false/transparent=true/",
		},
		{
			name: "track reference",
			in:   "track=12",
			want: "https://bandcamp.com/EmbeddedPlayer/track=12/size=large/bgcol=ffffff/linkcol=0687f5/tracklist=false/transparent=true/",
		},
		{name: "album page", in: "https://theroaring420s.bandcamp.com/album/the-roaring-420s", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BandcampEmbed(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("BandcampEmbed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSoundCloudEmbed(t *testing.T) {
	player := "https://w.soundcloud.com/player/?url=https%3A//api.soundcloud.com/tracks/1376989297&color=%23ff5500&auto_play=false&hide_related=false&show_comments=true&show_user=true&show_reposts=false&show_teaser=true"

	tc := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "player passes through", in: player, want: player},
		{name: "api track", in: "https://api.soundcloud.com/tracks/1376989297", want: player},
		{
			name: "track page",
			in:   "https://soundcloud.com/socke-hd/punk",
			want: "https://w.soundcloud.com/player/?url=https%3A//soundcloud.com/socke-hd/punk" + soundcloudPlayerOpts,
		},
		{
			name: "mobile host",
			in:   "https://m.soundcloud.com/socke-hd/punk",
			want: "https://w.soundcloud.com/player/?url=https%3A//soundcloud.com/socke-hd/punk" + soundcloudPlayerOpts,
		},
		{name: "bare host", in: "https://soundcloud.com/", wantErr: true},
		{name: "player without url", in: "https://w.soundcloud.com/player/", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SoundCloudEmbed(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("SoundCloudEmbed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectAndEmbed(t *testing.T) {
	tc := []struct {
		in   string
		want Provider
	}{
		{"https://youtu.be/hpMjJ-4r-iM", YouTube},
		{"https://city-boys.bandcamp.com/", Bandcamp},
		{"https://soundcloud.com/x/y", SoundCloud},
		{"https://www.thewhiffsband.com/", Unknown},
		{"::not a url", Unknown},
	}
	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := Detect(tt.in); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := Embed("https://www.thewhiffsband.com/"); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown provider, got %v", err)
	}
}

func TestNormalizeArtist(t *testing.T) {
	t.Run("rewrites every field", func(t *testing.T) {
		a := &models.Artist{
			Name:       "The Whiffs",
			YouTube:    "https://www.youtube.com/watch?v=6dM2rAb-RL8",
			Bandcamp:   "album=725028460",
			SoundCloud: "https://api.soundcloud.com/tracks/1376989297",
		}
		if err := NormalizeArtist(a); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if a.YouTube != "https://www.youtube.com/embed/6dM2rAb-RL8" {
			t.Errorf("unexpected youtube %q", a.YouTube)
		}
		if Detect(a.SoundCloud) != SoundCloud {
			t.Errorf("unexpected soundcloud %q", a.SoundCloud)
		}
	})

	t.Run("keeps failing fields", func(t *testing.T) {
		a := &models.Artist{
			YouTube:  "https://www.youtube.com/@thewhiffs",
			Bandcamp: "https://city-boys.bandcamp.com/",
		}
		err := NormalizeArtist(a)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if a.YouTube != "https://www.youtube.com/@thewhiffs" || a.Bandcamp != "https://city-boys.bandcamp.com/" {
			t.Error("expected failing fields to keep their values")
		}
	})
}
