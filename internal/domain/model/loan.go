package model

import (
	"time"
)

// Loan is active while ReturnedAt is nil.
type Loan struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	BookID     string     `json:"book_id" db:"book_id"`
	BorrowedAt time.Time  `json:"borrowed_at" db:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at" db:"returned_at"`
}

func (l *Loan) IsActive() bool { return l.ReturnedAt == nil }

type BorrowReceipt struct {
	LoanID     string    `json:"loan_id"`
	BookID     string    `json:"book_id"`
	BorrowedAt time.Time `json:"borrowed_at"`
}

type ReturnReceipt struct {
	LoanID     string    `json:"loan_id"`
	BookID     string    `json:"book_id"`
	ReturnedAt time.Time `json:"returned_at"`
}
