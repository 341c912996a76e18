// Package transaction holds the append-only points ledger entry model.
package transaction

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindEarned   Kind = "earned"
	KindRedeemed Kind = "redeemed"
	KindExpired  Kind = "expired"
	KindAdjusted Kind = "adjusted"
)

// Entry is one immutable row of the audit trail. Amount is signed:
// earned/adjusted entries are positive, redeemed entries negative.
// BalanceAfter snapshots the account balance immediately after the
// amount applied, so entries for one account form a prefix-sum sequence
// ending at the current balance.
type Entry struct {
	types.Entity
	ID           id.TransactionID `json:"id"`
	UserID       string           `json:"user_id"`
	TenantID     string           `json:"tenant_id"`
	Kind         Kind             `json:"kind"`
	Amount       decimal.Decimal  `json:"amount"`
	BalanceAfter decimal.Decimal  `json:"balance_after"`
	Description  string           `json:"description,omitempty"`
	ReferenceID  string           `json:"reference_id,omitempty"`
	Metadata     types.Metadata   `json:"metadata,omitempty"`
}

// IsCredit reports whether the entry added points to the account.
func (e *Entry) IsCredit() bool {
	return e.Amount.IsPositive()
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	out := *e
	if e.Metadata != nil {
		out.Metadata = make(types.Metadata, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
