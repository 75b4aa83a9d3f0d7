package youtube

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind classifies a channel reference.
type Kind int

const (
	// KindInvalid matches none of the recognized shapes.
	KindInvalid Kind = iota
	// KindDirectID carries the channel identifier itself.
	KindDirectID
	// KindHandle carries an @handle, stored without the @.
	KindHandle
	// KindUsername carries a legacy /user/ or /c/ name.
	KindUsername
)

func (k Kind) String() string {
	switch k {
	case KindDirectID:
		return "direct_id"
	case KindHandle:
		return "handle"
	case KindUsername:
		return "username"
	default:
		return "invalid"
	}
}

var (
	channelIDSegment = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	bareChannelID    = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)

	// Handles and custom names may use letters and digits of any script.
	handleSegment = regexp.MustCompile(`^[\p{L}\p{M}\p{N}_.\-]+$`)
)

// channelTabs may follow a channel path, as in /@name/videos.
var channelTabs = map[string]bool{
	"videos": true, "featured": true, "streams": true, "shorts": true,
	"playlists": true, "about": true, "community": true, "live": true,
	"podcasts": true, "releases": true,
}

// Reference is a parsed channel reference.
type Reference struct {
	Raw   string
	Kind  Kind
	Value string
	// prefix is the URL path prefix the value was found under ("channel", "user", "c" or "@").
	prefix string
}

// Searchable reports whether resolving r requires a channel search.
func (r Reference) Searchable() bool {
	return r.Kind == KindHandle || r.Kind == KindUsername
}

// PageURL returns the canonical channel page for r, or "" for an invalid reference.
func (r Reference) PageURL() string {
	const base = "https://www.youtube.com/"
	switch r.Kind {
	case KindDirectID:
		return base + "channel/" + r.Value
	case KindHandle:
		return base + "@" + url.PathEscape(r.Value)
	case KindUsername:
		if r.prefix == "c" {
			return base + "c/" + url.PathEscape(r.Value)
		}
		return base + "user/" + url.PathEscape(r.Value)
	}
	return ""
}

// ParseReference classifies raw. It never fails; an unrecognized shape
// yields KindInvalid. Use Validate to get an error.
func ParseReference(raw string) Reference {
	ref := Reference{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return ref
	}

	if bareChannelID.MatchString(s) {
		ref.Kind, ref.Value, ref.prefix = KindDirectID, s, "channel"
		return ref
	}
	if strings.HasPrefix(s, "@") {
		h := s[1:]
		if unescaped, err := url.PathUnescape(h); err == nil {
			h = unescaped
		}
		if handleSegment.MatchString(h) {
			ref.Kind, ref.Value, ref.prefix = KindHandle, h, "@"
		}
		return ref
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ref
	}

	segments := splitPath(u.Path)
	if len(segments) == 0 {
		return ref
	}

	var kind Kind
	var value, prefix string
	rest := segments[1:]
	switch first := segments[0]; {
	case first == "channel" && len(segments) >= 2:
		if channelIDSegment.MatchString(segments[1]) {
			kind, value, prefix = KindDirectID, segments[1], "channel"
		}
		rest = segments[2:]
	case (first == "user" || first == "c") && len(segments) >= 2:
		if handleSegment.MatchString(segments[1]) {
			kind, value, prefix = KindUsername, segments[1], first
		}
		rest = segments[2:]
	case strings.HasPrefix(first, "@") && len(first) > 1:
		if handleSegment.MatchString(first[1:]) {
			kind, value, prefix = KindHandle, first[1:], "@"
		}
	}
	if kind == KindInvalid || !onlyTabs(rest) {
		return ref
	}

	ref.Kind, ref.Value, ref.prefix = kind, value, prefix
	return ref
}

// Validate returns an *InvalidReferenceError for an invalid reference.
func (r Reference) Validate() error {
	if r.Kind != KindInvalid {
		return nil
	}
	reason := "unrecognized channel URL shape"
	if strings.TrimSpace(r.Raw) == "" {
		reason = "empty reference"
	}
	return &InvalidReferenceError{Reference: r.Raw, Reason: reason}
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func onlyTabs(segments []string) bool {
	if len(segments) > 1 {
		return false
	}
	for _, seg := range segments {
		if !channelTabs[strings.ToLower(seg)] {
			return false
		}
	}
	return true
}
