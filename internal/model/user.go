package model

import "github.com/shopspring/decimal"

type User struct {
	UserID   int64
	Username string
	Cash     decimal.Decimal
}
