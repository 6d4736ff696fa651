// Package dispute implements the case lifecycle: duplicate guarding, decision
// evaluation, and persistence of the resulting case.
package dispute

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cardpath/dispute-resolution-portal/internal/decision"
	"github.com/cardpath/dispute-resolution-portal/internal/fault"
	"github.com/cardpath/dispute-resolution-portal/internal/models"
)

// DefaultCaseListLimit bounds how many cases a customer listing returns.
const DefaultCaseListLimit = 50

// Gateway is the persistence surface the lifecycle manager needs.
type Gateway interface {
	GetTransaction(ctx context.Context, txnID string) (*models.Transaction, error)
	GetOpenCaseForTransaction(ctx context.Context, txnID string) (*models.Case, error)
	CreateCase(ctx context.Context, c models.Case) error
	GetCase(ctx context.Context, caseID string) (*models.Case, error)
	ListCasesByCustomer(ctx context.Context, customerID string, limit int32) ([]models.Case, error)
	UpdateCaseDocuments(ctx context.Context, caseID string, docs []models.Document) error
}

// Manager orchestrates the dispute flow. It is stateless across requests;
// one instance serves concurrent callers.
type Manager struct {
	gw     Gateway
	engine *decision.Engine
	guard  *Guard
	log    *zap.Logger
}

// NewManager wires the lifecycle manager.
func NewManager(gw Gateway, engine *decision.Engine, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{gw: gw, engine: engine, guard: NewGuard(gw, log), log: log}
}

// FileDispute runs the full flow for one verified transaction reference:
// load the transaction, guard against an open duplicate, decide, persist.
// Ownership of the transaction is assumed verified upstream; the customer id
// is still cross-checked against the record as a precondition.
func (m *Manager) FileDispute(ctx context.Context, customerID, txnID string, filedAt time.Time) CaseResult {
	txn, err := m.gw.GetTransaction(ctx, txnID)
	if err != nil {
		return m.failure(err, "load transaction", txnID)
	}
	if txn.CustomerID != customerID {
		return failed(fault.KindInvalidTransactionState,
			"transaction does not belong to the filing customer")
	}

	existingID, dup, err := m.guard.HasOpenCase(ctx, txnID)
	if err != nil {
		return m.failure(err, "duplicate check", txnID)
	}
	if dup {
		return duplicated(existingID)
	}

	dec, err := m.engine.Decide(*txn, filedAt)
	if err != nil {
		return m.failure(err, "decide", txnID)
	}

	now := filedAt.UTC().Format(time.RFC3339)
	c := models.Case{
		CaseID:               ulid.Make().String(),
		CustomerID:           txn.CustomerID,
		CardNumber:           txn.CardNumber,
		TransactionID:        txn.TransactionID,
		TransactionDate:      txn.Date,
		TransactionAmount:    txn.Amount,
		Merchant:             txn.Merchant,
		DisputeStatus:        dec.Status,
		DecisionReason:       dec.Reason,
		CreditType:           dec.CreditType,
		CreditAmount:         dec.CreditAmount,
		AutoDecided:          true,
		RequiresManualReview: dec.Status == models.StatusForwardedToAcquirer,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := m.gw.CreateCase(ctx, c); err != nil {
		if fault.Is(err, fault.KindDuplicateCase) {
			// Lost the race past the read-side guard; the conditional write
			// held the invariant. Point the caller at the winner.
			if winner, gerr := m.gw.GetOpenCaseForTransaction(ctx, txnID); gerr == nil && winner != nil {
				return duplicated(winner.CaseID)
			}
			return duplicated("")
		}
		return m.failure(err, "persist case", txnID)
	}

	m.log.Info("dispute filed",
		zap.String("case_id", c.CaseID),
		zap.String("transaction_id", txnID),
		zap.String("status", string(c.DisputeStatus)),
		zap.String("credit_type", string(c.CreditType)))
	return succeeded(&c)
}

// GetCase loads one case by id.
func (m *Manager) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	return m.gw.GetCase(ctx, caseID)
}

// GetCasesForCustomer lists a customer's cases, latest first.
func (m *Manager) GetCasesForCustomer(ctx context.Context, customerID string) ([]models.Case, error) {
	return m.gw.ListCasesByCustomer(ctx, customerID, DefaultCaseListLimit)
}

// AttachDocuments records uploaded document pointers on an existing case.
func (m *Manager) AttachDocuments(ctx context.Context, caseID string, docs []models.Document) error {
	if len(docs) == 0 {
		return fault.New(fault.KindValidation, "no documents to attach")
	}
	return m.gw.UpdateCaseDocuments(ctx, caseID, docs)
}

// failure folds a classified error into a CaseResult and logs it once, here,
// rather than letting the raw fault escape.
func (m *Manager) failure(err error, step, txnID string) CaseResult {
	kind := fault.KindOf(err)
	m.log.Error("dispute flow failed",
		zap.String("step", step),
		zap.String("transaction_id", txnID),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return failed(kind, err.Error())
}
