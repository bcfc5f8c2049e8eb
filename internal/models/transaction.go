// Package models provides the data structures used throughout the application.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single transaction record as seen by the classifier.
// Payee and Description are never nil: nullable store columns are mapped to
// the empty string when the record is read.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	Payee       string          `json:"payee" db:"payee"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	AccountID   string          `json:"account_id" db:"account_id"`
	Timestamp   time.Time       `json:"timestamp" db:"posted"`
	Category    string          `json:"category" db:"category"`
	Hidden      bool            `json:"hidden" db:"hidden"`

	// Invalid is set by the store when a column could not be read. Such a
	// record is counted by a batch but never classified.
	Invalid error `json:"-" db:"-"`
}

// CombinedText joins payee and description with a single space. This is the
// text the vectorizer sees.
func (t Transaction) CombinedText() string {
	return t.Payee + " " + t.Description
}

// IsUncategorized reports whether the transaction carries the sentinel category.
func (t Transaction) IsUncategorized() bool {
	return t.Category == CategoryUncategorized
}

// LabeledTransaction is a historical, already categorized transaction used
// for training.
type LabeledTransaction struct {
	Payee       string          `csv:"payee"`
	Description string          `csv:"description"`
	Amount      decimal.Decimal `csv:"-"`
	RawAmount   string          `csv:"amount"`
	AccountID   string          `csv:"account_id"`
	Category    string          `csv:"category"`
}

// AsTransaction returns the feature-relevant fields as a Transaction.
func (l LabeledTransaction) AsTransaction() Transaction {
	return Transaction{
		Payee:       l.Payee,
		Description: l.Description,
		Amount:      l.Amount,
		AccountID:   l.AccountID,
		Category:    l.Category,
	}
}
