package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type IconKind string

const (
	IconSVG   IconKind = "svg"
	IconURL   IconKind = "url"
	IconNamed IconKind = "named"
	IconText  IconKind = "text"
)

// IconSource says how an icon is rendered. Exactly one payload field is set,
// matching Kind.
type IconSource struct {
	Kind   IconKind `json:"kind"`
	Markup string   `json:"markup,omitempty"`
	Href   string   `json:"href,omitempty"`
	ID     string   `json:"id,omitempty"`
	Value  string   `json:"value,omitempty"`
}

var namedIcon = regexp.MustCompile(`^[a-z][a-z0-9]*([-_:][a-z0-9]+)*$`)

// ParseIconSource classifies a raw admin-entered icon value.
func ParseIconSource(raw string) IconSource {
	v := strings.TrimSpace(raw)
	lower := strings.ToLower(v)
	switch {
	case v == "":
		return IconSource{}
	case strings.HasPrefix(lower, "<svg"), strings.HasPrefix(lower, "<?xml"):
		return IconSource{Kind: IconSVG, Markup: v}
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "//"), strings.HasPrefix(lower, "/"),
		strings.HasPrefix(lower, "data:image/"):
		return IconSource{Kind: IconURL, Href: v}
	case namedIcon.MatchString(v):
		return IconSource{Kind: IconNamed, ID: v}
	default:
		return IconSource{Kind: IconText, Value: v}
	}
}

func (s IconSource) IsZero() bool { return s.Kind == "" }

func (s IconSource) Validate() error {
	var payload string
	switch s.Kind {
	case "":
		return nil
	case IconSVG:
		payload = s.Markup
	case IconURL:
		payload = s.Href
	case IconNamed:
		payload = s.ID
	case IconText:
		payload = s.Value
	default:
		return fmt.Errorf("unknown icon kind %q", s.Kind)
	}
	if strings.TrimSpace(payload) == "" {
		return fmt.Errorf("icon of kind %q has no payload", s.Kind)
	}
	return nil
}

// UnmarshalJSON accepts either the tagged object or a bare string, which is
// classified with ParseIconSource.
func (s *IconSource) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err == nil {
		*s = ParseIconSource(raw)
		return nil
	}
	type plain IconSource
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	out := IconSource(p)
	if err := out.Validate(); err != nil {
		return err
	}
	*s = out
	return nil
}
