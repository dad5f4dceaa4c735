package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"papertrade/config"
	"papertrade/internal/model"
	"papertrade/internal/service"
	"papertrade/utils"
)

const internalErrMsg = "something went wrong"

type TradingService interface {
	Register(ctx context.Context, username, password, confirmation string) (model.User, error)
	Login(ctx context.Context, username, password string) (model.User, error)
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	Buy(ctx context.Context, userID int64, symbol string, shares int) (model.TradeResult, error)
	Sell(ctx context.Context, userID int64, symbol string, shares int) (model.TradeResult, error)
	GetPortfolio(ctx context.Context, userID int64) (model.Portfolio, error)
	GetSellableSymbols(ctx context.Context, userID int64) ([]string, error)
	GetHistory(ctx context.Context, userID int64) ([]model.Transaction, error)
	ExportHistory(ctx context.Context, userID int64) (fileBytes []byte, fileExtension string, err error)
}

type Session interface {
	Create(ctx context.Context, sess model.Session) (token string, err error)
	Get(ctx context.Context, token string) (model.Session, error)
	Delete(ctx context.Context, token string) error
}

type Controller struct {
	cfg            *config.Config
	tradingService TradingService
	session        Session
}

func NewController(cfg *config.Config, tradingService TradingService, session Session) *Controller {
	return &Controller{
		cfg:            cfg,
		tradingService: tradingService,
		session:        session,
	}
}

type registerRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Confirmation string `json:"confirmation" binding:"required"`
}

func (ctrl *Controller) Register(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ctrl.tradingService.Register(ctx, req.Username, req.Password, req.Confirmation)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	slog.Info("user registered", slog.String("rqID", rqID), slog.Int64("userID", user.UserID))

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Registered! Please log in.",
		"username": user.Username,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ctrl *Controller) Login(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid username and/or password"})
		return
	}

	user, err := ctrl.tradingService.Login(ctx, req.Username, req.Password)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	token, err := ctrl.session.Create(ctx, model.Session{UserID: user.UserID, Username: user.Username})
	if err != nil {
		slog.Error("got error from session.Create", slog.String("rqID", rqID), slog.String("err", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalErrMsg})
		return
	}

	maxAge := int(ctrl.cfg.Session.Expiration.Seconds())
	c.SetCookie(ctrl.cfg.Session.CookieName, token, maxAge, "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{
		"message":  "You have been successfully logged in.",
		"token":    token,
		"username": user.Username,
	})
}

func (ctrl *Controller) Logout(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	token, ok := c.Value("sessionToken").(string)
	if ok && token != "" {
		if err := ctrl.session.Delete(ctx, token); err != nil {
			slog.Error("got error from session.Delete", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
	}

	c.SetCookie(ctrl.cfg.Session.CookieName, "", -1, "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{"message": "Logged out.", "redirect": "/login"})
}

func (ctrl *Controller) Quote(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid ticker."})
		return
	}

	quote, err := ctrl.tradingService.GetQuote(ctx, symbol)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": quote.Symbol,
		"name":   quote.Name,
		"price":  quote.Price.StringFixed(2),
	})
}

type tradeRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Shares string `json:"shares" binding:"required"`
}

// parseShares rejects anything that is not a positive whole number.
func parseShares(raw string) (int, error) {
	shares, err := strconv.Atoi(raw)
	if err != nil || shares < 1 {
		return 0, service.ErrInvalidShares
	}
	return shares, nil
}

func (ctrl *Controller) Buy(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shares, err := parseShares(req.Shares)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	result, err := ctrl.tradingService.Buy(ctx, sessionFromCtx(c).UserID, req.Symbol, shares)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Bought",
		"redirect": "/portfolio",
		"trade":    tradeResponse(result),
	})
}

func (ctrl *Controller) Sell(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shares, err := parseShares(req.Shares)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	result, err := ctrl.tradingService.Sell(ctx, sessionFromCtx(c).UserID, req.Symbol, shares)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Sold",
		"redirect": "/portfolio",
		"trade":    tradeResponse(result),
	})
}

func (ctrl *Controller) Portfolio(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	portfolio, err := ctrl.tradingService.GetPortfolio(ctx, sessionFromCtx(c).UserID)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	positions := make([]gin.H, 0, len(portfolio.Positions))
	for _, position := range portfolio.Positions {
		positions = append(positions, gin.H{
			"symbol": position.Symbol,
			"name":   position.Name,
			"shares": position.Shares,
			"price":  position.Price.StringFixed(2),
			"value":  position.Value.StringFixed(2),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"cash":      portfolio.Cash.StringFixed(2),
		"positions": positions,
		"net_worth": portfolio.NetWorth.StringFixed(2),
	})
}

func (ctrl *Controller) SellableSymbols(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	symbols, err := ctrl.tradingService.GetSellableSymbols(ctx, sessionFromCtx(c).UserID)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	if symbols == nil {
		symbols = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

func (ctrl *Controller) History(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	transactions, err := ctrl.tradingService.GetHistory(ctx, sessionFromCtx(c).UserID)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	history := make([]gin.H, 0, len(transactions))
	for _, tx := range transactions {
		history = append(history, gin.H{
			"symbol":       tx.Symbol,
			"shares_delta": tx.SharesDelta,
			"amount":       tx.Amount.StringFixed(2),
			"time":         tx.DtCreate,
		})
	}

	c.JSON(http.StatusOK, gin.H{"transactions": history})
}

func (ctrl *Controller) ExportHistory(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	fileBytes, fileExtension, err := ctrl.tradingService.ExportHistory(ctx, sessionFromCtx(c).UserID)
	if err != nil {
		ctrl.renderError(c, err)
		return
	}

	filename := fmt.Sprintf("history%s", fileExtension)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", fileBytes)
}

// renderError maps service errors to statuses and user-facing messages.
// Validation and business-rule failures stay 4xx; anything unexpected is a
// generic 500 without internal detail.
func (ctrl *Controller) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSymbolNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No stock with that ticker has been found."})
	case errors.Is(err, service.ErrInvalidShares):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a whole number of 1 or more shares."})
	case errors.Is(err, service.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You don't have enough capital!"})
	case errors.Is(err, service.ErrInsufficientShares):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You don't have that many shares."})
	case errors.Is(err, service.ErrEmptyCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Must provide username and password."})
	case errors.Is(err, service.ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords did not match."})
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Username is taken."})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid username and/or password"})
	default:
		rqID := utils.GetRequestIDFromCtx(utils.CreateCtxWithRqID(c))
		slog.Error("unexpected error in handler", slog.String("rqID", rqID), slog.String("err", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalErrMsg})
	}
}

func tradeResponse(result model.TradeResult) gin.H {
	return gin.H{
		"symbol": result.Symbol,
		"name":   result.Name,
		"shares": result.Shares,
		"price":  result.Price.StringFixed(2),
		"amount": result.Amount.StringFixed(2),
		"cash":   result.Cash.StringFixed(2),
	}
}

func sessionFromCtx(c *gin.Context) model.Session {
	sess, _ := c.Value("session").(model.Session)
	return sess
}
