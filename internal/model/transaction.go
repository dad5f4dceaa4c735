package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable record of a completed trade.
// SharesDelta is positive for buys and negative for sells.
type Transaction struct {
	TransactionID int64
	Symbol        string
	SharesDelta   int
	Amount        decimal.Decimal
	DtCreate      time.Time
}

// TradeResult is what a completed buy or sell returns to the caller.
type TradeResult struct {
	Symbol string
	Name   string
	Shares int
	Price  decimal.Decimal
	Amount decimal.Decimal
	Cash   decimal.Decimal
}
