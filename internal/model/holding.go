package model

import "github.com/shopspring/decimal"

type Holding struct {
	Symbol string
	Name   string
	Shares int
}

// Position is a holding priced at the current market quote.
type Position struct {
	Holding
	Price decimal.Decimal
	Value decimal.Decimal
}

type Portfolio struct {
	Cash      decimal.Decimal
	Positions []Position
	NetWorth  decimal.Decimal
}
