// Package transaction defines the canonical shapes that flow through the
// extraction engine: the raw Email handed in by a mail source, the Record a
// merchant extractor produces, and the Row written to the transaction log.
package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvalidMerchant is the merchant label a parser sets when it recognized an
// email but could not read its amount.
const InvalidMerchant = "Invalid"

// Record is the result of running one email through a merchant extractor.
//
// The zero value is the "no match" outcome. Empty strings mean the field was
// not found; an invalid Amount means no amount was found.
type Record struct {
	// CardNumber is the card's last four digits, or a merchant-specific
	// placeholder for merchants that never expose card data.
	CardNumber string

	// Amount is in the merchant's native currency units and never negative.
	Amount decimal.NullDecimal

	// Merchant is a human-readable merchant or sub-brand label.
	Merchant string

	// Category is only set by some extractors.
	Category string
}

// Empty returns the "no match" record.
func Empty() Record {
	return Record{}
}

// IsValid reports whether the record can be aggregated. A card number is the
// only requirement; the amount may legitimately be zero or missing.
func (r Record) IsValid() bool {
	return r.CardNumber != ""
}

// IsComplete reports whether the record is valid and carries an amount.
func (r Record) IsComplete() bool {
	return r.IsValid() && r.Amount.Valid
}

// IsMalformed reports whether a parser matched the email but produced
// garbage: a card number with no usable amount, or the Invalid sentinel.
func (r Record) IsMalformed() bool {
	if !r.IsValid() {
		return false
	}
	if r.Merchant == InvalidMerchant {
		return true
	}
	return !r.Amount.Valid || r.Amount.Decimal.IsZero()
}

// WithAmount returns a copy of r with the amount set.
func (r Record) WithAmount(d decimal.Decimal) Record {
	r.Amount = decimal.NullDecimal{Decimal: d, Valid: true}
	return r
}

// Email is a single message fetched from a mail source for one merchant.
type Email struct {
	Sender  string
	Subject *string
	Date    time.Time
	Body    string
}

// SubjectText returns the subject, or "" when the message has none.
func (e Email) SubjectText() string {
	if e.Subject == nil {
		return ""
	}
	return *e.Subject
}

// Row is a finalized record stamped with the source email's metadata, ready
// for the transaction log.
type Row struct {
	Source     string // registry key of the merchant extractor
	Date       time.Time
	Subject    string
	CardNumber string
	Amount     decimal.NullDecimal
	Merchant   string
	Category   string
}

// NewRow stamps a record with the date and subject of the email it came from.
func NewRow(source string, email Email, rec Record) Row {
	return Row{
		Source:     source,
		Date:       email.Date,
		Subject:    email.SubjectText(),
		CardNumber: rec.CardNumber,
		Amount:     rec.Amount,
		Merchant:   rec.Merchant,
		Category:   rec.Category,
	}
}

// AmountString formats the amount with two decimals, or "" when absent.
func (r Row) AmountString() string {
	if !r.Amount.Valid {
		return ""
	}
	return r.Amount.Decimal.StringFixed(2)
}
