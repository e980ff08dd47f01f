package services

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBoilerplate matches the running header and copyright footer of the
// AWS Organizations user guide, the corpus the PDF indexer was built for.
var DefaultBoilerplate = []string{
	`AWS Organizations User Guide`,
	`©\s*Amazon Web Services`,
}

var (
	manyNewlines  = regexp.MustCompile(`\n{3,}`)
	pageNumber    = regexp.MustCompile(`\n\d+\n`)
	hSpaceRun     = regexp.MustCompile(`[ \t]+`)
	carriageBreak = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Cleaner normalises text extracted from documents before it is chunked.
type Cleaner struct {
	boilerplate []*regexp.Regexp
}

// NewCleaner compiles the boilerplate patterns. Matching is case-insensitive.
func NewCleaner(patterns ...string) (*Cleaner, error) {
	c := &Cleaner{}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid boilerplate pattern %q: %w", p, err)
		}
		c.boilerplate = append(c.boilerplate, re)
	}
	return c, nil
}

// Clean strips boilerplate, collapses blank lines and horizontal whitespace,
// drops lines holding only a page number and trims the result. The passes
// are repeated until the text stops changing, so Clean(Clean(x)) == Clean(x).
func (c *Cleaner) Clean(raw string) string {
	text := raw
	for {
		next := c.cleanOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func (c *Cleaner) cleanOnce(text string) string {
	for _, re := range c.boilerplate {
		text = re.ReplaceAllString(text, "")
	}
	text = carriageBreak.Replace(text)
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	text = pageNumber.ReplaceAllString(text, "\n")
	text = hSpaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
