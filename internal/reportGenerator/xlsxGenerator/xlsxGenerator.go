package xlsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"papertrade/internal/model"
	"papertrade/utils"
)

const sheetName = "Transactions"

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders a user's transaction history as an .xlsx workbook.
func (g *XLSXGenerator) Generate(ctx context.Context, username string, transactions []model.Transaction) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	if len(transactions) == 0 {
		return nil, "", errors.New("empty transactions")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSheet(f, username, transactions); err != nil {
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSheet(f *excelize.File, username string, transactions []model.Transaction) error {
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "E1"); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Transaction history: %s", username))

	headerStyleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "A1", "E1", headerStyleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "symbol")
	_ = f.SetCellStr(sheetName, "B2", "side")
	_ = f.SetCellStr(sheetName, "C2", "shares")
	_ = f.SetCellStr(sheetName, "D2", "amount")
	_ = f.SetCellStr(sheetName, "E2", "date")

	for i, tx := range transactions {
		row := i + 3

		side := "buy"
		shares := tx.SharesDelta
		if shares < 0 {
			side = "sell"
			shares = -shares
		}

		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), tx.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", row), side)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("C%d", row), int(shares))
		_ = f.SetCellStr(sheetName, fmt.Sprintf("D%d", row), tx.Amount.StringFixed(2))
		_ = f.SetCellStr(sheetName, fmt.Sprintf("E%d", row), tx.DtCreate.Format("2006-01-02 15:04:05"))
	}

	return nil
}
