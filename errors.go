package lob

import "errors"

var (
	ErrInvalidParam = errors.New("the param is invalid")
	ErrInternal     = errors.New("internal server error")
	ErrTimeout      = errors.New("timeout")
	ErrShutdown     = errors.New("order book is shutting down")
	ErrNotFound     = errors.New("not found")
	ErrSequenceGap  = errors.New("event sequence gap detected")
)
