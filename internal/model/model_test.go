package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_Valid(t *testing.T) {
	assert.True(t, (&Order{Quantity: 1, Price: 1, Side: SideBuy}).Valid())
	assert.False(t, (&Order{Quantity: 0, Price: 1, Side: SideBuy}).Valid())
	assert.False(t, (&Order{Quantity: 1, Price: 0, Side: SideBuy}).Valid())
	assert.False(t, (&Order{Quantity: 1, Price: 1, Side: SideUnspecified}).Valid())
	assert.False(t, (*Order)(nil).Valid())
}

func TestParseSide(t *testing.T) {
	side, ok := ParseSide("BUY")
	assert.True(t, ok)
	assert.Equal(t, SideBuy, side)

	side, ok = ParseSide("sell")
	assert.True(t, ok)
	assert.Equal(t, SideSell, side)

	_, ok = ParseSide("HOLD")
	assert.False(t, ok)
}

func TestTrade_TotalValue(t *testing.T) {
	trade := &Trade{Quantity: 10, Price: 2.5}
	assert.Equal(t, 25.0, trade.TotalValue())
}

func TestNewOrderID_Unique(t *testing.T) {
	assert.NotEqual(t, NewOrderID(), NewOrderID())
}
