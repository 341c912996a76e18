package transaction

import "context"

// HistoryLimit caps how many entries a single history read returns.
// It is both the default and the maximum.
const HistoryLimit = 100

// Store is the ledger contract a storage backend must provide.
type Store interface {
	// Append writes a new entry inside the surrounding atomic unit.
	// Entries are write-once; no entry is ever mutated or deleted.
	Append(ctx context.Context, e *Entry) error

	// List returns entries for a pair ordered newest-first, at most
	// limit rows (clamped to HistoryLimit).
	List(ctx context.Context, userID, tenantID string, limit int) ([]*Entry, error)
}

// ClampLimit normalizes a caller-supplied history limit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > HistoryLimit {
		return HistoryLimit
	}
	return limit
}
