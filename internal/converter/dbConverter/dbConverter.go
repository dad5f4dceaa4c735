package dbConverter

import (
	"papertrade/internal/model"
	"papertrade/internal/model/dbModel"
)

func ConvertUser(dbUser dbModel.User) model.User {
	return model.User{
		UserID:   dbUser.UserID,
		Username: dbUser.Username,
		Cash:     dbUser.Cash,
	}
}

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		Symbol: dbHolding.Symbol,
		Name:   dbHolding.Name,
		Shares: dbHolding.Shares,
	}
}

func ConvertTransaction(dbTransaction dbModel.Transaction) model.Transaction {
	return model.Transaction{
		TransactionID: dbTransaction.TransactionID,
		Symbol:        dbTransaction.Symbol,
		SharesDelta:   dbTransaction.SharesDelta,
		Amount:        dbTransaction.Amount,
		DtCreate:      dbTransaction.DtCreate,
	}
}
