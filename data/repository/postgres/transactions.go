package postgres

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"papertrade/internal/converter/dbConverter"
	"papertrade/internal/model"
	"papertrade/internal/model/dbModel"
	"papertrade/utils"
)

func (r *Postgres) InsertTransaction(ctx context.Context, userID int64, symbol string, sharesDelta int, amount decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(user_id, symbol, shares_delta, amount)
		VALUES ($1, $2, $3, $4)
	`

	slog.Debug(
		"InsertTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("symbol", symbol),
		slog.Int("sharesDelta", sharesDelta),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol, sharesDelta, amount)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) GetTransactions(ctx context.Context, userID int64) (transactions []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactions"
	query := `
		SELECT transaction_id, user_id, symbol, shares_delta, amount, dt_create
		FROM transactions
		WHERE user_id = $1
		ORDER BY dt_create DESC, transaction_id DESC
		`

	slog.Debug("GetTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbTransaction dbModel.Transaction
		err = rows.StructScan(&dbTransaction)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, dbConverter.ConvertTransaction(dbTransaction))
	}

	return transactions, nil
}
