// Package classifier decides whether an email body is markup or plain text.
package classifier

import "strings"

// ContentType is the classification of an email body.
type ContentType int

const (
	PlainText ContentType = iota
	Markup
)

func (c ContentType) String() string {
	if c == Markup {
		return "markup"
	}
	return "plain_text"
}

// markupMarkers are matched case-insensitively anywhere in the body.
var markupMarkers = []string{"<html", "<body", "<div"}

// Classify returns Markup if the body contains any of the markup markers,
// PlainText otherwise. It is a heuristic and never validates the markup.
func Classify(body string) ContentType {
	lower := strings.ToLower(body)
	for _, marker := range markupMarkers {
		if strings.Contains(lower, marker) {
			return Markup
		}
	}
	return PlainText
}
