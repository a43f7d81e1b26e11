package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNotOwner          = errors.New("bot owned by another user")
	ErrBotRunning        = errors.New("bot is running")
	ErrBotNotRunning     = errors.New("bot is not running")
	ErrHalted            = errors.New("trading halted by risk limit")
	ErrPositionOpen      = errors.New("position already open")
	ErrNoPosition        = errors.New("no open position")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrPerpNotSupported  = errors.New("perpetual symbols not supported in live mode")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrNotReady          = errors.New("executor not ready")
)
