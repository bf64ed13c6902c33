// package media turns artist media links into embeddable player URLs and derives event keys
package media

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
)

// Provider identifies an embeddable media host.
type Provider int

const (
	Unknown Provider = iota
	YouTube
	Bandcamp
	SoundCloud
)

func (p Provider) String() string {
	switch p {
	case YouTube:
		return "youtube"
	case Bandcamp:
		return "bandcamp"
	case SoundCloud:
		return "soundcloud"
	default:
		return "unknown"
	}
}

const (
	bandcampPlayerOpts   = "size=large/bgcol=ffffff/linkcol=0687f5/tracklist=false/transparent=true/"
	soundcloudPlayerOpts = "&color=%23ff5500&auto_play=false&hide_related=false&show_comments=true&show_user=true&show_reposts=false&show_teaser=true"
)

var (
	iframeSrc    = regexp.MustCompile(`(?i)<iframe[^>]*\ssrc\s*=\s*["']([^"']+)["']`)
	youtubeID    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	bandcampItem = regexp.MustCompile(`(?:^|/)(album|track)=(\d+)`)
	numericTime  = regexp.MustCompile(`^(\d+)s?$`)
)

// ExtractIframeSrc returns the src attribute when raw is a pasted embed snippet, otherwise raw trimmed.
func ExtractIframeSrc(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := iframeSrc.FindStringSubmatch(raw); m != nil {
		return strings.ReplaceAll(m[1], "&amp;", "&")
	}
	return raw
}

// Detect reports which provider a link or embed snippet points at.
func Detect(raw string) Provider {
	u, err := url.Parse(ExtractIframeSrc(raw))
	if err != nil {
		return Unknown
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtu.be", host == "youtube.com", host == "m.youtube.com", host == "music.youtube.com", host == "youtube-nocookie.com":
		return YouTube
	case host == "bandcamp.com", strings.HasSuffix(host, ".bandcamp.com"):
		return Bandcamp
	case host == "soundcloud.com", strings.HasSuffix(host, ".soundcloud.com"):
		return SoundCloud
	default:
		return Unknown
	}
}

// Embed normalizes raw for its detected provider.
func Embed(raw string) (string, error) {
	switch Detect(raw) {
	case YouTube:
		return YouTubeEmbed(raw)
	case Bandcamp:
		return BandcampEmbed(raw)
	case SoundCloud:
		return SoundCloudEmbed(raw)
	default:
		return "", fmt.Errorf("%w: unsupported media link %q", shared.ErrInvalidInput, raw)
	}
}

// YouTubeEmbed converts watch, short, share and music links into https://www.youtube.com/embed/ID.
//
// Embed links pass through unchanged so share parameters such as si are kept.
// A numeric t parameter becomes start.
func YouTubeEmbed(raw string) (string, error) {
	src := ExtractIframeSrc(raw)
	u, err := url.Parse(src)
	if err != nil || Detect(src) != YouTube {
		return "", fmt.Errorf("%w: not a YouTube link %q", shared.ErrInvalidInput, raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	var id string
	switch {
	case strings.EqualFold(u.Hostname(), "youtu.be"):
		id = segments[0]
	case segments[0] == "embed" && len(segments) > 1:
		if youtubeID.MatchString(segments[1]) {
			return src, nil
		}
	case segments[0] == "watch":
		id = u.Query().Get("v")
	case (segments[0] == "shorts" || segments[0] == "live" || segments[0] == "v") && len(segments) > 1:
		id = segments[1]
	}

	if !youtubeID.MatchString(id) {
		return "", fmt.Errorf("%w: no video id in %q", shared.ErrInvalidInput, raw)
	}

	embed := "https://www.youtube.com/embed/" + id
	if m := numericTime.FindStringSubmatch(u.Query().Get("t")); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
			embed += "?start=" + m[1]
		}
	}
	return embed, nil
}

// BandcampEmbed builds a bandcamp EmbeddedPlayer URL from an embed snippet, player URL or album=/track= reference.
//
// Album and artist pages do not expose the numeric id in their URL, so they are rejected.
func BandcampEmbed(raw string) (string, error) {
	src := ExtractIframeSrc(raw)
	if strings.Contains(src, "bandcamp.com/EmbeddedPlayer/") {
		if !strings.HasSuffix(src, "/") {
			src += "/"
		}
		return strings.Replace(src, "http://", "https://", 1), nil
	}

	if m := bandcampItem.FindStringSubmatch(src); m != nil {
		return fmt.Sprintf("https://bandcamp.com/EmbeddedPlayer/%s=%s/%s", m[1], m[2], bandcampPlayerOpts), nil
	}

	return "", fmt.Errorf("%w: bandcamp link %q has no album or track id, paste the embed code instead", shared.ErrInvalidInput, raw)
}

// SoundCloudEmbed wraps a track, playlist or profile link in the w.soundcloud.com player.
func SoundCloudEmbed(raw string) (string, error) {
	src := ExtractIframeSrc(raw)
	u, err := url.Parse(src)
	if err != nil || Detect(src) != SoundCloud {
		return "", fmt.Errorf("%w: not a SoundCloud link %q", shared.ErrInvalidInput, raw)
	}

	host := strings.ToLower(u.Hostname())
	if host == "w.soundcloud.com" {
		if u.Query().Get("url") == "" {
			return "", fmt.Errorf("%w: player link without url parameter %q", shared.ErrInvalidInput, raw)
		}
		return src, nil
	}

	if strings.Trim(u.Path, "/") == "" {
		return "", fmt.Errorf("%w: no track in %q", shared.ErrInvalidInput, raw)
	}

	target := "https://" + strings.TrimPrefix(host, "m.") + u.EscapedPath()
	escaped := strings.ReplaceAll(url.QueryEscape(target), "%2F", "/")
	return "https://w.soundcloud.com/player/?url=" + escaped + soundcloudPlayerOpts, nil
}

// NormalizeArtist rewrites the artist's media links into embeddable form in place.
//
// Empty fields are left alone; every field that fails is reported and keeps its original value.
func NormalizeArtist(a *models.Artist) error {
	var errs []error
	for _, f := range []struct {
		value *string
		fn    func(string) (string, error)
	}{
		{&a.YouTube, YouTubeEmbed},
		{&a.Bandcamp, BandcampEmbed},
		{&a.SoundCloud, SoundCloudEmbed},
	} {
		if strings.TrimSpace(*f.value) == "" {
			continue
		}
		embed, err := f.fn(*f.value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.value = embed
	}
	return errors.Join(errs...)
}
