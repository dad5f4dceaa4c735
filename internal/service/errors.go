package service

import "errors"

var (
	ErrNotFound           = errors.New("error not found")
	ErrSymbolNotFound     = errors.New("error symbol not found")
	ErrInvalidShares      = errors.New("error shares must be a positive whole number")
	ErrInsufficientFunds  = errors.New("error insufficient funds")
	ErrInsufficientShares = errors.New("error insufficient shares")
	ErrUsernameTaken      = errors.New("error username already taken")
	ErrPasswordMismatch   = errors.New("error passwords do not match")
	ErrEmptyCredentials   = errors.New("error username and password must not be empty")
	ErrInvalidCredentials = errors.New("error invalid username and/or password")
)
