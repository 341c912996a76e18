package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"exact", "10.00", "10"},
		{"truncation not needed", "100.5", "100.5"},
		{"half rounds away from zero", "0.005", "0.01"},
		{"half rounds away from zero negative", "-0.005", "-0.01"},
		{"third digit below half", "2.344", "2.34"},
		{"third digit above half", "2.346", "2.35"},
		{"percentage artifact", "10.004999", "10"},
		{"large value", "99999.995", "100000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round(Dec(tt.input))
			if !got.Equal(Dec(tt.expected)) {
				t.Errorf("Round(%s): got %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDecPanicsOnGarbage(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for malformed literal")
		}
	}()

	_ = Dec("not-a-number")
}

func TestMinDec(t *testing.T) {
	a := Dec("5.00")
	b := Dec("10.00")

	if got := MinDec(a, b); !got.Equal(a) {
		t.Errorf("MinDec: got %s, want %s", got, a)
	}
	if got := MinDec(b, a); !got.Equal(a) {
		t.Errorf("MinDec: got %s, want %s", got, a)
	}
	if got := MinDec(a, a); !got.Equal(a) {
		t.Errorf("MinDec equal args: got %s, want %s", got, a)
	}
}

func TestEntityAt(t *testing.T) {
	e := NewEntity()
	if e.CreatedAt.IsZero() || e.UpdatedAt.IsZero() {
		t.Fatal("NewEntity should stamp both timestamps")
	}
	if !e.CreatedAt.Equal(e.UpdatedAt) {
		t.Error("NewEntity timestamps should match")
	}

	at := EntityAt(e.CreatedAt)
	if !at.CreatedAt.Equal(e.CreatedAt) {
		t.Error("EntityAt should use the supplied instant")
	}
}

func TestDecimalScale(t *testing.T) {
	// decimal.Round keeps trailing state internally; amounts compare by value.
	if !decimal.NewFromFloat(100.50).Equal(Dec("100.5")) {
		t.Error("decimal equality should ignore trailing zeros")
	}
}
