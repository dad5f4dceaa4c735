package tradingService

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/config"
	"papertrade/data/repository"
	"papertrade/internal/externalApi"
	"papertrade/internal/model"
	"papertrade/internal/reportGenerator/xlsxGenerator"
	"papertrade/internal/service"
)

type fakeQuoteApi struct {
	quotes map[string]model.Quote
}

func (f *fakeQuoteApi) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	quote, ok := f.quotes[symbol]
	if !ok {
		return model.Quote{}, externalApi.ErrNotFound
	}
	return quote, nil
}

type userRecord struct {
	user         model.User
	passwordHash string
}

type fakeRepo struct {
	nextUserID   int64
	users        map[int64]*userRecord
	userIDByName map[string]int64
	holdings     map[string]*model.Holding // keyed userID|symbol
	transactions map[int64][]model.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:        map[int64]*userRecord{},
		userIDByName: map[string]int64{},
		holdings:     map[string]*model.Holding{},
		transactions: map[int64][]model.Transaction{},
	}
}

func holdingKey(userID int64, symbol string) string {
	return fmt.Sprintf("%d|%s", userID, symbol)
}

func (f *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	return tFunc(ctx)
}

func (f *fakeRepo) InsertUser(_ context.Context, username, passwordHash string, startingCash decimal.Decimal) (int64, error) {
	if _, ok := f.userIDByName[username]; ok {
		return 0, repository.ErrAlreadyExists
	}
	f.nextUserID++
	f.users[f.nextUserID] = &userRecord{
		user:         model.User{UserID: f.nextUserID, Username: username, Cash: startingCash},
		passwordHash: passwordHash,
	}
	f.userIDByName[username] = f.nextUserID
	return f.nextUserID, nil
}

func (f *fakeRepo) GetUserByUsername(_ context.Context, username string) (model.User, string, error) {
	userID, ok := f.userIDByName[username]
	if !ok {
		return model.User{}, "", repository.ErrNotFound
	}
	rec := f.users[userID]
	return rec.user, rec.passwordHash, nil
}

func (f *fakeRepo) GetUser(_ context.Context, userID int64) (model.User, error) {
	rec, ok := f.users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return rec.user, nil
}

func (f *fakeRepo) GetUserForUpdate(ctx context.Context, userID int64) (model.User, error) {
	return f.GetUser(ctx, userID)
}

func (f *fakeRepo) UpdateUserCash(_ context.Context, userID int64, cash decimal.Decimal) error {
	rec, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.user.Cash = cash
	return nil
}

func (f *fakeRepo) GetHolding(_ context.Context, userID int64, symbol string) (model.Holding, error) {
	holding, ok := f.holdings[holdingKey(userID, symbol)]
	if !ok {
		return model.Holding{}, repository.ErrNotFound
	}
	return *holding, nil
}

func (f *fakeRepo) GetActiveHoldings(_ context.Context, userID int64) ([]model.Holding, error) {
	var holdings []model.Holding
	for key, holding := range f.holdings {
		if key == holdingKey(userID, holding.Symbol) && holding.Shares > 0 {
			holdings = append(holdings, *holding)
		}
	}
	return holdings, nil
}

func (f *fakeRepo) UpsertHolding(_ context.Context, userID int64, symbol, name string, shares int) error {
	key := holdingKey(userID, symbol)
	if holding, ok := f.holdings[key]; ok {
		holding.Shares += shares
		holding.Name = name
		return nil
	}
	f.holdings[key] = &model.Holding{Symbol: symbol, Name: name, Shares: shares}
	return nil
}

func (f *fakeRepo) DecrementHolding(_ context.Context, userID int64, symbol string, shares int) error {
	holding, ok := f.holdings[holdingKey(userID, symbol)]
	if !ok {
		return repository.ErrNotFound
	}
	holding.Shares -= shares
	return nil
}

func (f *fakeRepo) GetHeldSymbols(_ context.Context, userID int64) ([]string, error) {
	var symbols []string
	for key, holding := range f.holdings {
		if key == holdingKey(userID, holding.Symbol) && holding.Shares > 0 {
			symbols = append(symbols, holding.Symbol)
		}
	}
	return symbols, nil
}

func (f *fakeRepo) DeleteEmptyHoldings(_ context.Context) (int64, error) {
	var deleted int64
	for key, holding := range f.holdings {
		if holding.Shares == 0 {
			delete(f.holdings, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeRepo) InsertTransaction(_ context.Context, userID int64, symbol string, sharesDelta int, amount decimal.Decimal) error {
	f.transactions[userID] = append(f.transactions[userID], model.Transaction{
		TransactionID: int64(len(f.transactions[userID]) + 1),
		Symbol:        symbol,
		SharesDelta:   sharesDelta,
		Amount:        amount,
		DtCreate:      time.Now(),
	})
	return nil
}

func (f *fakeRepo) GetTransactions(_ context.Context, userID int64) ([]model.Transaction, error) {
	return f.transactions[userID], nil
}

func newTestService(repo *fakeRepo, quotes map[string]model.Quote) *TradingService {
	cfg := &config.Config{StartingCash: "10000"}
	return New(cfg, repo, &fakeQuoteApi{quotes: quotes}, xlsxGenerator.New())
}

func testQuotes() map[string]model.Quote {
	return map[string]model.Quote{
		"AAPL": {Symbol: "AAPL", Name: "Apple Inc", Price: decimal.NewFromInt(150)},
		"NFLX": {Symbol: "NFLX", Name: "Netflix Inc", Price: decimal.NewFromInt(50)},
	}
}

func registerUser(t *testing.T, srv *TradingService, username string) model.User {
	t.Helper()
	user, err := srv.Register(context.Background(), username, "secret", "secret")
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	srv := newTestService(newFakeRepo(), testQuotes())
	ctx := context.Background()

	user, err := srv.Register(ctx, "alice", "secret", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.Cash.Equal(decimal.NewFromInt(10000)))

	_, err = srv.Register(ctx, "alice", "other", "other")
	assert.ErrorIs(t, err, service.ErrUsernameTaken)

	// first registration still works after the rejected duplicate
	existing, err := srv.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, user.UserID, existing.UserID)
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestService(newFakeRepo(), testQuotes())
	ctx := context.Background()

	_, err := srv.Register(ctx, "", "secret", "secret")
	assert.ErrorIs(t, err, service.ErrEmptyCredentials)

	_, err = srv.Register(ctx, "bob", "", "")
	assert.ErrorIs(t, err, service.ErrEmptyCredentials)

	_, err = srv.Register(ctx, "bob", "secret", "different")
	assert.ErrorIs(t, err, service.ErrPasswordMismatch)
}

func TestLogin(t *testing.T) {
	srv := newTestService(newFakeRepo(), testQuotes())
	ctx := context.Background()
	registerUser(t, srv, "alice")

	_, err := srv.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = srv.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	user, err := srv.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestGetQuote(t *testing.T) {
	srv := newTestService(newFakeRepo(), testQuotes())
	ctx := context.Background()

	quote, err := srv.GetQuote(ctx, " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "Apple Inc", quote.Name)

	_, err = srv.GetQuote(ctx, "NOPE")
	assert.ErrorIs(t, err, service.ErrSymbolNotFound)

	_, err = srv.GetQuote(ctx, "")
	assert.ErrorIs(t, err, service.ErrSymbolNotFound)
}

func TestBuy(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, testQuotes())
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	result, err := srv.Buy(ctx, user.UserID, "aapl", 10)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", result.Symbol)
	assert.Equal(t, 10, result.Shares)
	assert.Equal(t, "1500", result.Amount.String())
	assert.Equal(t, "8500", result.Cash.String())

	stored, err := repo.GetUser(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "8500", stored.Cash.String())

	holding, err := repo.GetHolding(ctx, user.UserID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 10, holding.Shares)
	assert.Equal(t, "Apple Inc", holding.Name)

	transactions := repo.transactions[user.UserID]
	require.Len(t, transactions, 1)
	assert.Equal(t, 10, transactions[0].SharesDelta)
	assert.Equal(t, "1500", transactions[0].Amount.String())
}

func TestBuyInsufficientFunds(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, testQuotes())
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	// 100 * 150 = 15000 > 10000
	_, err := srv.Buy(ctx, user.UserID, "AAPL", 100)
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	stored, err := repo.GetUser(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "10000", stored.Cash.String())

	_, err = repo.GetHolding(ctx, user.UserID, "AAPL")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, repo.transactions[user.UserID])
}

func TestBuyValidation(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, testQuotes())
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	_, err := srv.Buy(ctx, user.UserID, "AAPL", 0)
	assert.ErrorIs(t, err, service.ErrInvalidShares)

	_, err = srv.Buy(ctx, user.UserID, "AAPL", -3)
	assert.ErrorIs(t, err, service.ErrInvalidShares)

	_, err = srv.Buy(ctx, user.UserID, "NOPE", 1)
	assert.ErrorIs(t, err, service.ErrSymbolNotFound)

	stored, err := repo.GetUser(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "10000", stored.Cash.String())
	assert.Empty(t, repo.transactions[user.UserID])
}

func TestSell(t *testing.T) {
	repo := newFakeRepo()
	quotes := testQuotes()
	srv := newTestService(repo, quotes)
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	_, err := srv.Buy(ctx, user.UserID, "AAPL", 10)
	require.NoError(t, err)

	// price moved up before the sale
	quotes["AAPL"] = model.Quote{Symbol: "AAPL", Name: "Apple Inc", Price: decimal.NewFromInt(160)}

	result, err := srv.Sell(ctx, user.UserID, "AAPL", 5)
	require.NoError(t, err)
	assert.Equal(t, "800", result.Amount.String())
	assert.Equal(t, "9300", result.Cash.String())

	holding, err := repo.GetHolding(ctx, user.UserID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 5, holding.Shares)

	transactions := repo.transactions[user.UserID]
	require.Len(t, transactions, 2)
	assert.Equal(t, -5, transactions[1].SharesDelta)
	assert.Equal(t, "800", transactions[1].Amount.String())
}

func TestSellInsufficientShares(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, testQuotes())
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	_, err := srv.Buy(ctx, user.UserID, "AAPL", 5)
	require.NoError(t, err)

	_, err = srv.Sell(ctx, user.UserID, "AAPL", 6)
	assert.ErrorIs(t, err, service.ErrInsufficientShares)

	// never held NFLX at all
	_, err = srv.Sell(ctx, user.UserID, "NFLX", 1)
	assert.ErrorIs(t, err, service.ErrInsufficientShares)

	stored, err := repo.GetUser(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "9250", stored.Cash.String())

	holding, err := repo.GetHolding(ctx, user.UserID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 5, holding.Shares)
	require.Len(t, repo.transactions[user.UserID], 1)
}

func TestTransactionDeltasMatchHolding(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, testQuotes())
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	_, err := srv.Buy(ctx, user.UserID, "NFLX", 20)
	require.NoError(t, err)
	_, err = srv.Sell(ctx, user.UserID, "NFLX", 7)
	require.NoError(t, err)
	_, err = srv.Buy(ctx, user.UserID, "NFLX", 3)
	require.NoError(t, err)

	sum := 0
	for _, tx := range repo.transactions[user.UserID] {
		sum += tx.SharesDelta
	}

	holding, err := repo.GetHolding(ctx, user.UserID, "NFLX")
	require.NoError(t, err)
	assert.Equal(t, holding.Shares, sum)
}

func TestGetPortfolio(t *testing.T) {
	repo := newFakeRepo()
	quotes := map[string]model.Quote{
		"NFLX": {Symbol: "NFLX", Name: "Netflix Inc", Price: decimal.NewFromInt(50)},
	}
	srv := newTestService(repo, quotes)
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	// empty holdings: net worth equals cash
	portfolio, err := srv.GetPortfolio(ctx, user.UserID)
	require.NoError(t, err)
	assert.Empty(t, portfolio.Positions)
	assert.Equal(t, "10000", portfolio.NetWorth.String())

	// spend down to 1000 cash, then hold 2 shares at 50
	require.NoError(t, repo.UpdateUserCash(ctx, user.UserID, decimal.NewFromInt(1000)))
	require.NoError(t, repo.UpsertHolding(ctx, user.UserID, "NFLX", "Netflix Inc", 2))

	portfolio, err = srv.GetPortfolio(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, portfolio.Positions, 1)
	assert.Equal(t, "100", portfolio.Positions[0].Value.String())
	assert.Equal(t, "1100", portfolio.NetWorth.String())
}

func TestGetSellableSymbols(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, testQuotes())
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	symbols, err := srv.GetSellableSymbols(ctx, user.UserID)
	require.NoError(t, err)
	assert.Empty(t, symbols)

	_, err = srv.Buy(ctx, user.UserID, "AAPL", 1)
	require.NoError(t, err)

	symbols, err = srv.GetSellableSymbols(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbols)
}

func TestExportHistory(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, testQuotes())
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	_, err := srv.Buy(ctx, user.UserID, "AAPL", 2)
	require.NoError(t, err)

	fileBytes, fileExtension, err := srv.ExportHistory(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", fileExtension)
	assert.NotEmpty(t, fileBytes)
}

func TestPruneEmptyHoldings(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, testQuotes())
	ctx := context.Background()
	user := registerUser(t, srv, "alice")

	_, err := srv.Buy(ctx, user.UserID, "AAPL", 3)
	require.NoError(t, err)
	_, err = srv.Sell(ctx, user.UserID, "AAPL", 3)
	require.NoError(t, err)

	require.NoError(t, srv.PruneEmptyHoldings(ctx))

	_, err = repo.GetHolding(ctx, user.UserID, "AAPL")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
