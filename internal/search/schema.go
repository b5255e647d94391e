package search

import (
	"fmt"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
)

// FieldType says whether a field is analyzed.
type FieldType string

// Field types.
const (
	// TypeText fields are analyzed and can be weighted.
	TypeText FieldType = "text"
	// TypeString fields are stored verbatim and matched exactly.
	TypeString FieldType = "string"
)

// Field declares one document field.
type Field struct {
	Name   string    `json:"name"`
	Type   FieldType `json:"type"`
	Weight float64   `json:"weight,omitempty"`
	Filter bool      `json:"filter,omitempty"`
}

// Schema is fixed when the index is reset.
type Schema struct {
	Fields     []Field `json:"fields"`
	TieBreaker float64 `json:"tie_breaker"`
}

// DefaultSchema weights summaries above titles and filters on topic.
func DefaultSchema() Schema {
	return Schema{
		Fields: []Field{
			{Name: "title", Type: TypeText, Weight: 1.0},
			{Name: "revision_id", Type: TypeString},
			{Name: "summary", Type: TypeText, Weight: 3.0},
			{Name: "url", Type: TypeString},
			{Name: "topic", Type: TypeString, Filter: true},
		},
	}
}

// WithWeights returns a copy of s with the title and summary weights replaced.
// Non-positive values leave the existing weight.
func (s Schema) WithWeights(title, summary, tie float64) Schema {
	out := Schema{Fields: append([]Field(nil), s.Fields...), TieBreaker: tie}
	for i, f := range out.Fields {
		switch {
		case f.Name == "title" && title > 0:
			out.Fields[i].Weight = title
		case f.Name == "summary" && summary > 0:
			out.Fields[i].Weight = summary
		}
	}
	return out
}

// Validate checks that the schema can be indexed.
func (s Schema) Validate() error {
	if s.TieBreaker < 0 || s.TieBreaker > 1 {
		return fmt.Errorf("%w: tie breaker %v outside [0,1]", ErrIndexSetup, s.TieBreaker)
	}
	seen := make(map[string]bool, len(s.Fields))
	weighted, filters := 0, 0
	for _, f := range s.Fields {
		if _, ok := fieldValue(crawler.Document{}, f.Name); !ok {
			return fmt.Errorf("%w: unknown field %q", ErrIndexSetup, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate field %q", ErrIndexSetup, f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case TypeText:
			if f.Weight <= 0 {
				return fmt.Errorf("%w: text field %q needs a positive weight", ErrIndexSetup, f.Name)
			}
			weighted++
		case TypeString:
			if f.Weight != 0 {
				return fmt.Errorf("%w: string field %q cannot be weighted", ErrIndexSetup, f.Name)
			}
		default:
			return fmt.Errorf("%w: field %q has unknown type %q", ErrIndexSetup, f.Name, f.Type)
		}
		if f.Filter {
			if f.Type != TypeString {
				return fmt.Errorf("%w: filter field %q must be a string field", ErrIndexSetup, f.Name)
			}
			filters++
		}
	}
	if weighted == 0 {
		return fmt.Errorf("%w: no weighted text field", ErrIndexSetup)
	}
	if filters != 1 {
		return fmt.Errorf("%w: exactly one filter field required, got %d", ErrIndexSetup, filters)
	}
	return nil
}

// fieldValue reads a named field from a document.
func fieldValue(d crawler.Document, name string) (string, bool) {
	switch name {
	case "title":
		return d.Title, true
	case "revision_id":
		return d.RevisionID, true
	case "summary":
		return d.Summary, true
	case "url":
		return d.URL, true
	case "topic":
		return d.Topic, true
	default:
		return "", false
	}
}
