package tradingService

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"papertrade/config"
	"papertrade/data/repository"
	"papertrade/internal/externalApi"
	"papertrade/internal/model"
	"papertrade/internal/service"
	"papertrade/utils"
)

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	InsertUser(ctx context.Context, username, passwordHash string, startingCash decimal.Decimal) (userID int64, err error)
	GetUserByUsername(ctx context.Context, username string) (user model.User, passwordHash string, err error)
	GetUser(ctx context.Context, userID int64) (user model.User, err error)
	GetUserForUpdate(ctx context.Context, userID int64) (user model.User, err error)
	UpdateUserCash(ctx context.Context, userID int64, cash decimal.Decimal) (err error)
	GetHolding(ctx context.Context, userID int64, symbol string) (holding model.Holding, err error)
	GetActiveHoldings(ctx context.Context, userID int64) (holdings []model.Holding, err error)
	UpsertHolding(ctx context.Context, userID int64, symbol, name string, shares int) (err error)
	DecrementHolding(ctx context.Context, userID int64, symbol string, shares int) (err error)
	GetHeldSymbols(ctx context.Context, userID int64) (symbols []string, err error)
	DeleteEmptyHoldings(ctx context.Context) (deleted int64, err error)
	InsertTransaction(ctx context.Context, userID int64, symbol string, sharesDelta int, amount decimal.Decimal) (err error)
	GetTransactions(ctx context.Context, userID int64) (transactions []model.Transaction, err error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, username string, transactions []model.Transaction) (fileBytes []byte, fileExtension string, err error)
}

type TradingService struct {
	repo            Repository
	quoteApi        QuoteApi
	reportGenerator ReportGenerator
	startingCash    decimal.Decimal
}

func New(cfg *config.Config, repo Repository, quoteApi QuoteApi, reportGenerator ReportGenerator) *TradingService {
	startingCash, err := decimal.NewFromString(cfg.StartingCash)
	if err != nil || startingCash.IsNegative() {
		panic("invalid STARTING_CASH config value: " + cfg.StartingCash)
	}

	return &TradingService{
		repo:            repo,
		quoteApi:        quoteApi,
		reportGenerator: reportGenerator,
		startingCash:    startingCash,
	}
}

func (s *TradingService) Register(ctx context.Context, username, password, confirmation string) (model.User, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Register"

	slog.Debug("Register start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("Register finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	}()

	if username == "" || password == "" {
		return model.User{}, service.ErrEmptyCredentials
	}

	if password != confirmation {
		return model.User{}, service.ErrPasswordMismatch
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("got error from bcrypt.GenerateFromPassword", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	userID, err := s.repo.InsertUser(ctx, username, string(passwordHash), s.startingCash)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.User{}, service.ErrUsernameTaken
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	return model.User{UserID: userID, Username: username, Cash: s.startingCash}, nil
}

// Login verifies the submitted password against the stored hash. Unknown
// usernames and wrong passwords fail with the same error so the caller can't
// tell which field was wrong.
func (s *TradingService) Login(ctx context.Context, username, password string) (model.User, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Login"

	slog.Debug("Login start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("Login finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	}()

	if username == "" || password == "" {
		return model.User{}, service.ErrInvalidCredentials
	}

	user, passwordHash, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, service.ErrInvalidCredentials
		}
		slog.Error("got error from repo.GetUserByUsername", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return model.User{}, service.ErrInvalidCredentials
	}

	return user, nil
}

// GetQuote resolves a symbol to its live price. Provider outages surface the
// same way as unknown symbols but are logged at error level.
func (s *TradingService) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetQuote"

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetQuote finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return model.Quote{}, service.ErrSymbolNotFound
	}

	quote, err := s.quoteApi.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("symbol not found in quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			return model.Quote{}, service.ErrSymbolNotFound
		}
		slog.Error("can't get quote from quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, service.ErrSymbolNotFound
	}

	return quote, nil
}

// Buy purchases shares at the live price. The balance check, holding upsert,
// transaction append and cash debit run as one DB transaction over a locked
// user row, so concurrent trades for the same account serialize.
func (s *TradingService) Buy(ctx context.Context, userID int64, symbol string, shares int) (result model.TradeResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Buy"

	slog.Debug("Buy start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		slog.Debug("Buy finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	if shares < 1 {
		return model.TradeResult{}, service.ErrInvalidShares
	}

	quote, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return model.TradeResult{}, err
	}

	cost := quote.Price.Mul(decimal.NewFromInt(int64(shares)))

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if user.Cash.LessThan(cost) {
			return service.ErrInsufficientFunds
		}

		if err := s.repo.UpsertHolding(ctx, userID, quote.Symbol, quote.Name, shares); err != nil {
			return err
		}

		if err := s.repo.InsertTransaction(ctx, userID, quote.Symbol, shares, cost); err != nil {
			return err
		}

		newCash := user.Cash.Sub(cost)
		if err := s.repo.UpdateUserCash(ctx, userID, newCash); err != nil {
			return err
		}

		result = model.TradeResult{
			Symbol: quote.Symbol,
			Name:   quote.Name,
			Shares: shares,
			Price:  quote.Price,
			Amount: cost,
			Cash:   newCash,
		}
		return nil
	})

	if err != nil {
		if !errors.Is(err, service.ErrInsufficientFunds) {
			slog.Error("buy transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return model.TradeResult{}, err
	}

	return result, nil
}

// Sell disposes shares at the live price. Mirrors Buy: holding check,
// holding decrement, transaction append and cash credit are all-or-nothing.
func (s *TradingService) Sell(ctx context.Context, userID int64, symbol string, shares int) (result model.TradeResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Sell"

	slog.Debug("Sell start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		slog.Debug("Sell finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	if shares < 1 {
		return model.TradeResult{}, service.ErrInvalidShares
	}

	quote, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return model.TradeResult{}, err
	}

	proceeds := quote.Price.Mul(decimal.NewFromInt(int64(shares)))

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		holding, err := s.repo.GetHolding(ctx, userID, quote.Symbol)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrInsufficientShares
			}
			return err
		}

		if holding.Shares < shares {
			return service.ErrInsufficientShares
		}

		if err := s.repo.DecrementHolding(ctx, userID, quote.Symbol, shares); err != nil {
			return err
		}

		if err := s.repo.InsertTransaction(ctx, userID, quote.Symbol, -shares, proceeds); err != nil {
			return err
		}

		newCash := user.Cash.Add(proceeds)
		if err := s.repo.UpdateUserCash(ctx, userID, newCash); err != nil {
			return err
		}

		result = model.TradeResult{
			Symbol: quote.Symbol,
			Name:   quote.Name,
			Shares: shares,
			Price:  quote.Price,
			Amount: proceeds,
			Cash:   newCash,
		}
		return nil
	})

	if err != nil {
		if !errors.Is(err, service.ErrInsufficientShares) {
			slog.Error("sell transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return model.TradeResult{}, err
	}

	return result, nil
}

// GetPortfolio re-prices every active holding at the live quote and sums the
// net worth. Prices are fetched fresh on every call.
func (s *TradingService) GetPortfolio(ctx context.Context, userID int64) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetPortfolio"

	slog.Debug("GetPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("GetPortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Portfolio{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	holdings, err := s.repo.GetActiveHoldings(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetActiveHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	portfolio.Cash = user.Cash
	portfolio.NetWorth = user.Cash
	portfolio.Positions = make([]model.Position, 0, len(holdings))

	for _, holding := range holdings {
		quote, err := s.quoteApi.GetQuote(ctx, holding.Symbol)
		if err != nil {
			slog.Error("can't price holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", holding.Symbol), slog.String("err", err.Error()))
			return model.Portfolio{}, err
		}

		value := quote.Price.Mul(decimal.NewFromInt(int64(holding.Shares)))
		portfolio.Positions = append(portfolio.Positions, model.Position{
			Holding: holding,
			Price:   quote.Price,
			Value:   value,
		})
		portfolio.NetWorth = portfolio.NetWorth.Add(value)
	}

	return portfolio, nil
}

func (s *TradingService) GetSellableSymbols(ctx context.Context, userID int64) ([]string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetSellableSymbols"

	slog.Debug("GetSellableSymbols start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("GetSellableSymbols finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	symbols, err := s.repo.GetHeldSymbols(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetHeldSymbols", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return symbols, nil
}

func (s *TradingService) GetHistory(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetHistory"

	slog.Debug("GetHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("GetHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	transactions, err := s.repo.GetTransactions(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetTransactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return transactions, nil
}

func (s *TradingService) ExportHistory(ctx context.Context, userID int64) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.ExportHistory"

	slog.Debug("ExportHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("ExportHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", service.ErrNotFound
		}
		return nil, "", err
	}

	transactions, err := s.repo.GetTransactions(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetTransactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	return s.reportGenerator.Generate(ctx, user.Username, transactions)
}

// PruneEmptyHoldings removes zero-share holding rows. Runs from the scheduler.
func (s *TradingService) PruneEmptyHoldings(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.PruneEmptyHoldings"

	deleted, err := s.repo.DeleteEmptyHoldings(ctx)
	if err != nil {
		slog.Error("got error from repo.DeleteEmptyHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("pruned empty holdings", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("deleted", deleted))

	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
