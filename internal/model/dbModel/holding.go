package dbModel

type Holding struct {
	UserID int64  `db:"user_id"`
	Symbol string `db:"symbol"`
	Name   string `db:"name"`
	Shares int    `db:"shares"`
}
