// Package models defines the data models used in the application.
package models

// DisputeStatus represents the outcome state of a dispute case.
type DisputeStatus string

// Possible values for DisputeStatus
const (
	StatusRejectedTimeBarred  DisputeStatus = "REJECTED_TIME_BARRED"
	StatusResolvedCustomer    DisputeStatus = "RESOLVED_CUSTOMER"
	StatusForwardedToAcquirer DisputeStatus = "FORWARDED_TO_ACQUIRER"
	StatusResolvedAcquirer    DisputeStatus = "RESOLVED_ACQUIRER"
	StatusClosed              DisputeStatus = "CLOSED"
)

// IsTerminal reports whether a case in this status is closed for further
// dispute activity. A new dispute may be filed for a transaction only once
// the prior case reaches a terminal status.
func (s DisputeStatus) IsTerminal() bool {
	switch s {
	case StatusRejectedTimeBarred, StatusResolvedCustomer, StatusResolvedAcquirer, StatusClosed:
		return true
	}
	return false
}

// CreditType classifies the monetary credit attached to a decision.
type CreditType string

// Possible values for CreditType
const (
	CreditNone      CreditType = "NONE"
	CreditTemporary CreditType = "TEMPORARY"
	CreditPermanent CreditType = "PERMANENT"
)

// Transaction is a single card transaction. Transactions are reference data:
// the dispute flow reads them but never mutates them.
type Transaction struct {
	TransactionID string `dynamodbav:"transaction_id" json:"transaction_id"`
	CustomerID    string `dynamodbav:"customer_id" json:"customer_id"`
	CardNumber    string `dynamodbav:"card_number" json:"card_number"`
	Amount        Money  `dynamodbav:"amount" json:"amount"`
	Currency      string `dynamodbav:"currency" json:"currency"`
	Date          string `dynamodbav:"transaction_date" json:"transaction_date"` // ISO8601
	Merchant      string `dynamodbav:"merchant" json:"merchant"`
	Description   string `dynamodbav:"description" json:"description"`
	Status        string `dynamodbav:"status" json:"status"`
}

// Card is a payment card with its transactions, owned by exactly one customer.
type Card struct {
	CardNumber   string        `dynamodbav:"card_number" json:"card_number"`
	CardType     string        `dynamodbav:"card_type" json:"card_type"`
	CardStatus   string        `dynamodbav:"card_status" json:"card_status"`
	Holder       string        `dynamodbav:"cardholder_name" json:"cardholder_name"`
	ExpiryDate   string        `dynamodbav:"expiry_date" json:"expiry_date"`
	Transactions []Transaction `dynamodbav:"transactions" json:"transactions"`
}

// Customer groups the cards (and nested transactions) belonging to one
// account holder.
type Customer struct {
	CustomerID string `dynamodbav:"customer_id" json:"customer_id"`
	Name       string `dynamodbav:"cardholder_name" json:"cardholder_name"`
	Cards      []Card `dynamodbav:"cards" json:"cards"`
}

// Document records one file attached to a case. The binary itself lives in
// S3; the case keeps only the pointer.
type Document struct {
	Filename string `dynamodbav:"filename" json:"filename"`
	S3Key    string `dynamodbav:"s3_key" json:"s3_key"`
	URL      string `dynamodbav:"url" json:"url"`
}

// Case is a persisted dispute decision for exactly one transaction. At most
// one open case may exist per transaction id.
type Case struct {
	CaseID               string        `dynamodbav:"case_id" json:"case_id"` // ULID
	CustomerID           string        `dynamodbav:"customer_id" json:"customer_id"`
	CardNumber           string        `dynamodbav:"card_number" json:"card_number"`
	TransactionID        string        `dynamodbav:"transaction_id" json:"transaction_id"`
	TransactionDate      string        `dynamodbav:"transaction_date" json:"transaction_date"`
	TransactionAmount    Money         `dynamodbav:"transaction_amount" json:"transaction_amount"`
	Merchant             string        `dynamodbav:"merchant" json:"merchant"`
	DisputeStatus        DisputeStatus `dynamodbav:"dispute_status" json:"dispute_status"`
	DecisionReason       string        `dynamodbav:"decision_reason" json:"decision_reason"`
	CreditType           CreditType    `dynamodbav:"credit_type" json:"credit_type"`
	CreditAmount         Money         `dynamodbav:"credit_amount" json:"credit_amount"`
	AutoDecided          bool          `dynamodbav:"auto_decided" json:"auto_decided"`
	RequiresManualReview bool          `dynamodbav:"requires_manual_review" json:"requires_manual_review"`
	CreatedAt            string        `dynamodbav:"created_at" json:"created_at"` // ISO8601
	UpdatedAt            string        `dynamodbav:"updated_at" json:"updated_at"` // ISO8601
	Documents            []Document    `dynamodbav:"documents,omitempty" json:"documents,omitempty"`
}

// Open reports whether the case still blocks a new dispute on its transaction.
func (c Case) Open() bool { return !c.DisputeStatus.IsTerminal() }
