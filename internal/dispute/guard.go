package dispute

import (
	"context"

	"go.uber.org/zap"
)

// Guard answers whether a transaction already carries an open case. It reads
// through the gateway's transaction index; the index is eventually consistent,
// so the conditional write inside CreateCase remains the authoritative check.
type Guard struct {
	gw  Gateway
	log *zap.Logger
}

// NewGuard builds a duplicate guard over the gateway.
func NewGuard(gw Gateway, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{gw: gw, log: log}
}

// HasOpenCase returns the blocking case id when one exists. Presence of one
// or more open cases blocks creation either way; reconciliation of the
// should-never-happen multi-open state is not attempted here.
func (g *Guard) HasOpenCase(ctx context.Context, txnID string) (string, bool, error) {
	c, err := g.gw.GetOpenCaseForTransaction(ctx, txnID)
	if err != nil {
		return "", false, err
	}
	if c == nil {
		return "", false, nil
	}
	g.log.Info("open case already on file",
		zap.String("transaction_id", txnID), zap.String("case_id", c.CaseID))
	return c.CaseID, true, nil
}
