package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	TransactionID int64           `db:"transaction_id"`
	UserID        int64           `db:"user_id"`
	Symbol        string          `db:"symbol"`
	SharesDelta   int             `db:"shares_delta"`
	Amount        decimal.Decimal `db:"amount"`
	DtCreate      time.Time       `db:"dt_create"`
}
