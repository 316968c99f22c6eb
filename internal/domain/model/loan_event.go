package model

import (
	"time"
)

const (
	LoanEventBorrowed = "borrowed"
	LoanEventReturned = "returned"
)

// LoanEvent is published after a borrow or return commits.
type LoanEvent struct {
	Type       string    `json:"type"`
	LoanID     string    `json:"loan_id"`
	UserID     string    `json:"user_id"`
	BookID     string    `json:"book_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LedgerDrift describes a book whose copy counter disagrees with its loans.
type LedgerDrift struct {
	BookID            string `json:"book_id"`
	TotalCopies       int    `json:"total_copies"`
	AvailableCopies   int    `json:"available_copies"`
	ActiveLoans       int    `json:"active_loans"`
	ExpectedAvailable int    `json:"expected_available"`
}
