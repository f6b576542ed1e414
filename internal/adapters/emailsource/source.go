// Package emailsource supplies merchant emails to the extraction pipeline.
//
// The mailbox file format is YAML:
//
//	emails:
//	  - from: "Grab <no-reply@grab.com>"
//	    subject: "Your GrabFood E-Receipt"
//	    date: 2024-03-01T09:30:00+08:00
//	    body: |
//	      <html>...</html>
//
// A missing subject is kept as absent, not as an empty string.
package emailsource

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

// Source fetches emails from one sender within a time window, oldest first.
// A limited fetch keeps the oldest emails and never splits emails that share
// a timestamp.
type Source interface {
	Fetch(ctx context.Context, opts FetchOptions) ([]transaction.Email, error)
}

// FetchOptions selects emails. Zero Start or End leaves that side open.
type FetchOptions struct {
	Sender string
	Start  time.Time // inclusive
	End    time.Time // exclusive
	Limit  int       // keep only the oldest Limit emails (0 = all)
}

// StaticSource serves a fixed set of emails.
type StaticSource struct {
	emails []transaction.Email
}

// NewStaticSource creates a source over emails.
func NewStaticSource(emails []transaction.Email) *StaticSource {
	return &StaticSource{emails: append([]transaction.Email(nil), emails...)}
}

// Fetch returns matching emails ordered oldest first.
func (s *StaticSource) Fetch(ctx context.Context, opts FetchOptions) ([]transaction.Email, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := normalizeAddress(opts.Sender)
	var out []transaction.Email
	for _, e := range s.emails {
		if want != "" && normalizeAddress(e.Sender) != want {
			continue
		}
		if !opts.Start.IsZero() && e.Date.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && !e.Date.Before(opts.End) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:limitCut(out, opts.Limit)]
	}
	return out, nil
}

// limitCut returns how many of the date-ordered emails to keep for a limit
// of n. Emails sharing a timestamp stay together: the cut backs off to the
// previous timestamp, or grows past n when the first n share one.
func limitCut(emails []transaction.Email, n int) int {
	cut := n
	for cut > 0 && emails[cut].Date.Equal(emails[cut-1].Date) {
		cut--
	}
	if cut > 0 {
		return cut
	}
	cut = n
	for cut < len(emails) && emails[cut].Date.Equal(emails[n-1].Date) {
		cut++
	}
	return cut
}

// normalizeAddress reduces "Name <addr>" to a lower-cased bare address.
func normalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(s); err == nil {
		s = addr.Address
	}
	return strings.ToLower(s)
}

// FileSource reads a YAML mailbox file on every Fetch, so edits to the file
// are picked up without a restart.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the mailbox file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the mailbox file path.
func (f *FileSource) Path() string {
	return f.path
}

type mailboxFile struct {
	Emails []mailboxEmail `yaml:"emails"`
}

type mailboxEmail struct {
	From    string    `yaml:"from"`
	Subject *string   `yaml:"subject"`
	Date    time.Time `yaml:"date"`
	Body    string    `yaml:"body"`
}

// Load parses the whole mailbox file.
func (f *FileSource) Load() ([]transaction.Email, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox %s: %w", f.path, err)
	}

	var mb mailboxFile
	if err := yaml.Unmarshal(data, &mb); err != nil {
		return nil, fmt.Errorf("failed to parse mailbox %s: %w", f.path, err)
	}

	emails := make([]transaction.Email, 0, len(mb.Emails))
	for i, e := range mb.Emails {
		if e.Date.IsZero() {
			return nil, fmt.Errorf("mailbox %s: email %d has no date", f.path, i)
		}
		emails = append(emails, transaction.Email{
			Sender:  e.From,
			Subject: e.Subject,
			Date:    e.Date,
			Body:    e.Body,
		})
	}
	return emails, nil
}

// Fetch loads the mailbox and filters it.
func (f *FileSource) Fetch(ctx context.Context, opts FetchOptions) ([]transaction.Email, error) {
	emails, err := f.Load()
	if err != nil {
		return nil, err
	}
	return NewStaticSource(emails).Fetch(ctx, opts)
}
