package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction types
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// CategoryDues is the category used for membership dues payments
const CategoryDues = "dues"

// Transaction holds the structure for the transactions collection in mongo.
// Amounts are stored in the smallest currency unit.
type Transaction struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Type        string             `json:"type" bson:"type"`
	Category    string             `json:"category" bson:"category"`
	Amount      int64              `json:"amount" bson:"amount"`
	Description string             `json:"description" bson:"description"`
	Date        time.Time          `json:"date" bson:"date"`
	ReceiptURL  string             `json:"receiptUrl,omitempty" bson:"receiptUrl,omitempty"`
	UserID      string             `json:"userId,omitempty" bson:"userId,omitempty"`
	ExternalRef string             `json:"externalRef,omitempty" bson:"externalRef,omitempty"`
	RecordedBy  string             `json:"recordedBy" bson:"recordedBy"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// TransactionRequest is the body of the create and update transaction routes
type TransactionRequest struct {
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	ReceiptURL  string    `json:"receiptUrl"`
}

// FinanceSummary totals a set of transactions
type FinanceSummary struct {
	Income     int64            `json:"income"`
	Expense    int64            `json:"expense"`
	Balance    int64            `json:"balance"`
	ByCategory map[string]int64 `json:"byCategory"`
	Count      int              `json:"count"`
}

// Summarize totals transactions; expenses count negative in ByCategory
func Summarize(txns []Transaction) FinanceSummary {
	s := FinanceSummary{ByCategory: map[string]int64{}, Count: len(txns)}
	for _, t := range txns {
		switch t.Type {
		case TransactionIncome:
			s.Income += t.Amount
			s.ByCategory[t.Category] += t.Amount
		case TransactionExpense:
			s.Expense += t.Amount
			s.ByCategory[t.Category] -= t.Amount
		}
	}
	s.Balance = s.Income - s.Expense
	return s
}

// DuesConfirmRequest confirms a completed dues checkout
type DuesConfirmRequest struct {
	SessionID string `json:"sessionId"`
}
