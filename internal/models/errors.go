package models

import "errors"

// Custom errors
var (
	ErrInvalidCriteria = errors.New("invalid profitability criteria")
	ErrInvalidWindow   = errors.New("invalid backtest window")
	ErrInvalidID       = errors.New("invalid ID format")
)
