package models

import (
	"fmt"
	"strings"
)

// PassageMetadata is the provenance of a passage. It is used to build
// citations and is never used for ranking.
type PassageMetadata struct {
	SourceFile string `json:"source_file"`
	Section    string `json:"section,omitempty"`
	Page       int    `json:"page,omitempty"`
	Service    string `json:"service,omitempty"`
}

// Locator returns the section title for sectioned sources, or "page-N" for
// paged ones. It is empty when neither is known.
func (m PassageMetadata) Locator() string {
	if m.Section != "" {
		return m.Section
	}
	if m.Page > 0 {
		return fmt.Sprintf("page-%d", m.Page)
	}
	return ""
}

// Citation renders the human-readable "file#locator" source string.
func (m PassageMetadata) Citation() string {
	return m.SourceFile + "#" + m.Locator()
}

// Passage is an immutable unit of indexed text.
type Passage struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata PassageMetadata `json:"metadata"`
}

// Valid reports whether the passage carries everything needed to be used as
// context and cited.
func (p Passage) Valid() bool {
	return strings.TrimSpace(p.Text) != "" && p.Metadata.SourceFile != "" && p.Metadata.Locator() != ""
}
