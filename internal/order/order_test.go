package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Status Transition Tests
// ============================================

func TestOrder_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to accepted", StatusPending, StatusAccepted, true},
		{"pending to rejected", StatusPending, StatusRejected, true},
		{"pending to completed skips accepted", StatusPending, StatusCompleted, false},
		{"accepted to completed", StatusAccepted, StatusCompleted, true},
		{"accepted to rejected", StatusAccepted, StatusRejected, false},
		{"rejected is terminal", StatusRejected, StatusPending, false},
		{"completed is terminal", StatusCompleted, StatusRejected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{Status: tt.from}
			assert.Equal(t, tt.allowed, o.CanTransitionTo(tt.to))
		})
	}
}

func TestOrder_Terminal(t *testing.T) {
	assert.False(t, (&Order{Status: StatusPending}).Terminal())
	assert.False(t, (&Order{Status: StatusAccepted}).Terminal())
	assert.True(t, (&Order{Status: StatusCompleted}).Terminal())
	assert.True(t, (&Order{Status: StatusRejected}).Terminal())
}

func TestOrder_TransitionError(t *testing.T) {
	o := Order{Status: StatusRejected}
	assert.ErrorIs(t, o.TransitionError(StatusAccepted), ErrAlreadyTerminal)

	o = Order{Status: StatusPending}
	assert.ErrorIs(t, o.TransitionError(StatusCompleted), ErrInvalidStatus)
}

// ============================================
// Snapshot Parsing Tests
// ============================================

func TestParseLines_Structured(t *testing.T) {
	raw := json.RawMessage(`[{"item_id":"latte","qty":2,"unit_price":450}]`)

	lines, ok := ParseLines(raw)

	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, "latte", lines[0].ItemID)
	assert.Equal(t, 2, lines[0].Qty)
	assert.Equal(t, 450, lines[0].UnitPrice)
}

func TestParseLines_LegacyFreeText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain text", `"two coffees and a bagel"`},
		{"not json at all", `two coffees`},
		{"empty", ``},
		{"empty list", `[]`},
		{"missing item id", `[{"qty":1,"unit_price":100}]`},
		{"zero qty", `[{"item_id":"x","qty":0,"unit_price":100}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, ok := ParseLines(json.RawMessage(tt.raw))
			assert.False(t, ok)
			assert.Nil(t, lines)
		})
	}
}

func TestOrder_Snapshot_PrefersStructuredLines(t *testing.T) {
	o := Order{
		Lines:    []Line{{ItemID: "a", Qty: 1, UnitPrice: 100}},
		RawLines: json.RawMessage(`"garbage"`),
	}

	lines, ok := o.Snapshot()
	require.True(t, ok)
	assert.Len(t, lines, 1)
}

// ============================================
// Total Tests
// ============================================

func TestSnapshotTotal(t *testing.T) {
	lines := []Line{
		{ItemID: "1", Qty: 2, UnitPrice: 300},
		{ItemID: "2", Qty: 1, UnitPrice: 500},
	}
	assert.Equal(t, 1100, SnapshotTotal(lines))
	assert.Equal(t, 0, SnapshotTotal(nil))
}
