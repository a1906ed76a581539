package stores

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrExists           = errors.New("record already exists")
	ErrExpired          = errors.New("record expired")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func normalizePrefix(prefix, fallback string) string {
	if prefix == "" {
		return fallback
	}
	return prefix
}
