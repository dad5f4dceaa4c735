package model

type Session struct {
	UserID   int64
	Username string
}
