package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"papertrade/data/repository"
	"papertrade/internal/converter/dbConverter"
	"papertrade/internal/model"
	"papertrade/internal/model/dbModel"
	"papertrade/utils"
)

func (r *Postgres) GetHolding(ctx context.Context, userID int64, symbol string) (holding model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHolding"
	query := `
		SELECT user_id, symbol, name, shares
		FROM holdings
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("GetHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("GetHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbHolding := dbModel.Holding{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, symbol).StructScan(&dbHolding)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Holding{}, repository.ErrNotFound
		}
		return model.Holding{}, err
	}

	return dbConverter.ConvertHolding(dbHolding), nil
}

// GetActiveHoldings returns the user's holdings with at least one share.
// Zero-share rows are kept out of portfolio views.
func (r *Postgres) GetActiveHoldings(ctx context.Context, userID int64) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetActiveHoldings"
	query := `
		SELECT user_id, symbol, name, shares
		FROM holdings
		WHERE user_id = $1
		AND shares > 0
		ORDER BY symbol
		`

	slog.Debug("GetActiveHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetActiveHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetActiveHoldings completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbHolding dbModel.Holding
		err = rows.StructScan(&dbHolding)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, dbConverter.ConvertHolding(dbHolding))
	}

	return holdings, nil
}

// UpsertHolding inserts a holding row or increments the share count of an
// existing one.
func (r *Postgres) UpsertHolding(ctx context.Context, userID int64, symbol, name string, shares int) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertHolding"
	query := `
		INSERT INTO holdings(user_id, symbol, name, shares)
		VALUES($1, $2, $3, $4)
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			shares = holdings.shares + EXCLUDED.shares,
			name = EXCLUDED.name
	`

	slog.Debug("UpsertHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		if err != nil {
			slog.Error("UpsertHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol, name, shares)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) DecrementHolding(ctx context.Context, userID int64, symbol string, shares int) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DecrementHolding"
	query := `
		UPDATE holdings
		SET shares = shares - $1
		WHERE user_id = $2
		AND symbol = $3
	`

	slog.Debug("DecrementHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		if err != nil {
			slog.Error("DecrementHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DecrementHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, shares, userID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) GetHeldSymbols(ctx context.Context, userID int64) (symbols []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHeldSymbols"
	query := `
		SELECT symbol FROM holdings
		WHERE user_id = $1
		AND shares > 0
		ORDER BY symbol
		`

	slog.Debug("GetHeldSymbols start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetHeldSymbols failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHeldSymbols completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &symbols, query, userID)
	if err != nil {
		return nil, err
	}

	return symbols, nil
}

func (r *Postgres) DeleteEmptyHoldings(ctx context.Context) (deleted int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteEmptyHoldings"
	query := `DELETE FROM holdings WHERE shares = 0`

	slog.Debug("DeleteEmptyHoldings start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		if err != nil {
			slog.Error("DeleteEmptyHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteEmptyHoldings completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("deleted", deleted))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	deleted, err = res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return deleted, nil
}
