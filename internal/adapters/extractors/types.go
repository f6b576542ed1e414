// Package extractors defines the merchant extractor contract and the shared
// subject-routed dispatch every merchant uses.
//
// A merchant registers two ordered route lists, one for markup bodies and one
// for plain text. Extraction classifies the body, tries the route whose
// subject matcher accepts the email's subject, and if that yields nothing
// sweeps every route for the content type in registration order.
package extractors

import (
	"errors"
	"strings"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/markup"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

// ErrUnknownMerchant is returned when a merchant key is not registered.
var ErrUnknownMerchant = errors.New("unknown merchant")

// MerchantExtractor is implemented by every supported merchant.
// Implementations are built once and must not keep per-call state.
type MerchantExtractor interface {
	// Name is the registry key, e.g. "Grab". Keys are case-sensitive.
	Name() string

	// MerchantEmail is the sender address used to filter the mailbox.
	MerchantEmail() string

	// Extract parses one email body. It never fails: an empty Record means
	// no parser recognized the email.
	Extract(content string, subject *string) transaction.Record
}

// Input is what a parser receives. Doc is set for markup routes and nil for
// plain-text routes.
type Input struct {
	Raw     string
	Doc     *markup.Document
	Subject *string
}

// SubjectText returns the subject, or "" when absent.
func (in Input) SubjectText() string {
	if in.Subject == nil {
		return ""
	}
	return *in.Subject
}

// ParseFunc extracts a record from one email. It returns an empty record
// when the email is not the shape it understands.
type ParseFunc func(in Input) transaction.Record

// SubjectMatcher decides whether a route owns a subject line.
type SubjectMatcher interface {
	Match(subject string) bool
	String() string
}

type exactMatcher string

func (m exactMatcher) Match(subject string) bool { return subject == string(m) }
func (m exactMatcher) String() string             { return "exact:" + string(m) }

type prefixMatcher string

func (m prefixMatcher) Match(subject string) bool { return strings.HasPrefix(subject, string(m)) }
func (m prefixMatcher) String() string             { return "prefix:" + string(m) }

// Exact matches a subject equal to s.
func Exact(s string) SubjectMatcher { return exactMatcher(s) }

// Prefix matches any subject starting with s.
func Prefix(s string) SubjectMatcher { return prefixMatcher(s) }

// Route pairs a subject matcher with the parser for that email template.
type Route struct {
	Name  string
	Match SubjectMatcher
	Parse ParseFunc
}
