package loyalty

import "github.com/xraph/loyalty/types"

// Re-export common types for convenience so users don't have to import types package.

// Entity is re-exported from types package.
type Entity = types.Entity

// Metadata is re-exported from types package.
type Metadata = types.Metadata

// Re-export decimal helpers
var (
	Round  = types.Round
	MinDec = types.MinDec
)

// Re-export Entity constructors
var (
	NewEntity = types.NewEntity
	EntityAt  = types.EntityAt
)
