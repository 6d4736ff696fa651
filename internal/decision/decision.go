// Package decision implements the dispute decision rules. The engine is a
// pure function over the transaction and the filing time; it performs no I/O
// and never consults the wall clock.
package decision

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardpath/dispute-resolution-portal/internal/fault"
	"github.com/cardpath/dispute-resolution-portal/internal/models"
)

// Default thresholds. Disputes older than 600 whole days are time-barred;
// amounts up to 100.00 resolve in the customer's favor without investigation.
const DefaultTimeBarredDays = 600

// DefaultAutoResolveAmount is the self-service threshold in the transaction's
// currency unit.
var DefaultAutoResolveAmount = decimal.RequireFromString("100.00")

// Config carries the business thresholds. Injected rather than hardcoded so
// deployments (and tests) can vary them.
type Config struct {
	TimeBarredDays    int
	AutoResolveAmount decimal.Decimal
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		TimeBarredDays:    DefaultTimeBarredDays,
		AutoResolveAmount: DefaultAutoResolveAmount,
	}
}

// Decision is the computed outcome for one dispute.
type Decision struct {
	Status       models.DisputeStatus
	CreditType   models.CreditType
	CreditAmount models.Money
	Reason       string
}

// Engine evaluates the dispute rules against its configured thresholds.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Decide applies the rules in fixed order, first match wins:
//
//  1. age > TimeBarredDays whole days: rejected, no credit.
//  2. amount <= AutoResolveAmount: resolved for the customer, permanent credit.
//  3. otherwise: forwarded to the acquirer, temporary credit.
//
// A missing, unparseable, or negative input fails with an invalid transaction
// state rather than guessing a decision.
func (e *Engine) Decide(txn models.Transaction, filedAt time.Time) (Decision, error) {
	txnDate, err := ParseDate(txn.Date)
	if err != nil {
		return Decision{}, fault.Wrap(fault.KindInvalidTransactionState, err,
			"transaction %s has unusable date %q", txn.TransactionID, txn.Date)
	}

	// A zero amount means the attribute never made it onto the record;
	// there is nothing to dispute either way.
	amount := txn.Amount.Decimal
	if amount.IsNegative() || amount.IsZero() {
		return Decision{}, fault.New(fault.KindInvalidTransactionState,
			"transaction %s has missing or negative amount %s", txn.TransactionID, amount)
	}

	ageDays := wholeDays(txnDate, filedAt)

	if ageDays > e.cfg.TimeBarredDays {
		return Decision{
			Status:       models.StatusRejectedTimeBarred,
			CreditType:   models.CreditNone,
			CreditAmount: models.ZeroMoney(),
			Reason: fmt.Sprintf("dispute filed %d days after transaction, beyond the %d day time-bar window",
				ageDays, e.cfg.TimeBarredDays),
		}, nil
	}

	if amount.LessThanOrEqual(e.cfg.AutoResolveAmount) {
		return Decision{
			Status:       models.StatusResolvedCustomer,
			CreditType:   models.CreditPermanent,
			CreditAmount: txn.Amount,
			Reason: fmt.Sprintf("auto-resolved: amount %s within the %s self-service threshold",
				amount, e.cfg.AutoResolveAmount),
		}, nil
	}

	return Decision{
		Status:       models.StatusForwardedToAcquirer,
		CreditType:   models.CreditTemporary,
		CreditAmount: txn.Amount,
		Reason: fmt.Sprintf("amount %s forwarded for acquirer investigation; provisional credit issued",
			amount),
	}, nil
}

// ParseDate parses an ISO8601 transaction date, tolerating a missing
// timezone suffix.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// wholeDays counts complete 24h periods between from and to. A dispute filed
// exactly on the boundary is not yet past it.
func wholeDays(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
