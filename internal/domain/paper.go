package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Author is a paper author as reported by the provider. ID is nil when the
// provider has no author identifier.
type Author struct {
	Name string  `json:"name" yaml:"name"`
	ID   *string `json:"id" yaml:"id"`
}

// Paper is the uniform record returned for every provider.
//
// Every field is always serialized. Unknown optional values are rendered as
// null, unknown strings as "", and missing authors as an empty list, so
// callers can parse results from any provider the same way.
type Paper struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Abstract  string    `json:"abstract" yaml:"abstract"`
	Year      *int      `json:"year" yaml:"year"`
	Authors   []Author  `json:"authors" yaml:"authors"`
	URL       *string   `json:"url" yaml:"url"`
	Venue     *string   `json:"venue" yaml:"venue"`
	Type      PaperType `json:"type" yaml:"type"`
	Citations *int      `json:"citations" yaml:"citations"`
}

// MarshalJSON renders a nil author list as [].
func (p Paper) MarshalJSON() ([]byte, error) {
	type plain Paper
	if p.Authors == nil {
		p.Authors = []Author{}
	}
	return json.Marshal(plain(p))
}

// PaperType is the provider's classification of a paper. Some providers
// report a single tag ("preprint"), others a list (["JournalArticle",
// "Review"]). The zero value is unknown and serializes as null.
type PaperType struct {
	Tags []string
	List bool
}

// TypeTag returns a single-tag type, or the unknown type for a blank tag.
func TypeTag(tag string) PaperType {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return PaperType{}
	}
	return PaperType{Tags: []string{tag}}
}

// TypeList returns a list type. A nil list is unknown; an empty list is kept
// as an empty list.
func TypeList(tags []string) PaperType {
	if tags == nil {
		return PaperType{}
	}
	return PaperType{Tags: append([]string{}, tags...), List: true}
}

// IsZero reports whether the type is unknown.
func (t PaperType) IsZero() bool {
	return !t.List && len(t.Tags) == 0
}

// MarshalJSON implements json.Marshaler.
func (t PaperType) MarshalJSON() ([]byte, error) {
	switch {
	case t.List:
		return json.Marshal(t.Tags)
	case len(t.Tags) == 0:
		return []byte("null"), nil
	default:
		return json.Marshal(t.Tags[0])
	}
}

// MarshalYAML renders the type as null, a scalar or a sequence, matching
// the JSON form.
func (t PaperType) MarshalYAML() (interface{}, error) {
	switch {
	case t.List:
		return append([]string{}, t.Tags...), nil
	case len(t.Tags) == 0:
		return nil, nil
	default:
		return t.Tags[0], nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *PaperType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = PaperType{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var tags []string
		if err := json.Unmarshal(data, &tags); err != nil {
			return fmt.Errorf("decoding paper type list: %w", err)
		}
		*t = TypeList(tags)
		return nil
	default:
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return fmt.Errorf("decoding paper type: %w", err)
		}
		*t = TypeTag(tag)
		return nil
	}
}

// OptionalString returns nil for a blank string, otherwise a pointer to the
// trimmed value.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// OptionalInt returns a pointer to v.
func OptionalInt(v int) *int {
	return &v
}
