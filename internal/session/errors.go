package session

import "errors"

var (
	ErrEmptyToken     = errors.New("token is empty")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrInvalidProfile = errors.New("verifier returned an invalid identity")
	ErrVerifierFailed = errors.New("auth service unavailable")
)
