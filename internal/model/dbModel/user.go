package dbModel

import "github.com/shopspring/decimal"

type User struct {
	UserID       int64           `db:"user_id"`
	Username     string          `db:"username"`
	PasswordHash string          `db:"password_hash"`
	Cash         decimal.Decimal `db:"cash"`
}
