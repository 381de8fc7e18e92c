// Package auth stores API credentials in the OS keychain.
package auth

import (
	"errors"

	"nathanbeddoewebdev/dialctl/internal/util"
)

// ServiceName is the keychain service all dialctl secrets live under.
const ServiceName = "dialctl"

// APIKey is the account name of the performance API bearer token.
const APIKey = "api"

var ErrTokenNotFound = errors.New("auth token not found")

type Store interface {
	SetToken(account string, token string) error
	GetToken(account string) (string, error)
	DeleteToken(account string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeAccount normalizes an account name for consistent key lookup.
func NormalizeAccount(account string) string {
	return util.NormalizeKey(account)
}

// Mask shortens a token for display, keeping the last four characters.
func Mask(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
