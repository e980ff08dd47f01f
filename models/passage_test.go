package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassageMetadata_Citation(t *testing.T) {
	tests := []struct {
		name string
		meta PassageMetadata
		want string
	}{
		{"section", PassageMetadata{SourceFile: "billing.md", Section: "Billing"}, "billing.md#Billing"},
		{"page", PassageMetadata{SourceFile: "guide.pdf", Page: 12}, "guide.pdf#page-12"},
		{"section wins over page", PassageMetadata{SourceFile: "a.md", Section: "Intro", Page: 3}, "a.md#Intro"},
		{"no locator", PassageMetadata{SourceFile: "a.md"}, "a.md#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.meta.Citation())
		})
	}
}

func TestPassage_Valid(t *testing.T) {
	ok := Passage{Text: "body", Metadata: PassageMetadata{SourceFile: "a.md", Section: "S"}}
	assert.True(t, ok.Valid())

	assert.False(t, Passage{Text: "  ", Metadata: ok.Metadata}.Valid())
	assert.False(t, Passage{Text: "body", Metadata: PassageMetadata{Section: "S"}}.Valid())
	assert.False(t, Passage{Text: "body", Metadata: PassageMetadata{SourceFile: "a.md"}}.Valid())
}
