package core

import "errors"

var (
	ErrMalformedMessage = errors.New("malformed challenge message")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpiredChallenge = errors.New("challenge has expired")
	ErrNonceMismatch    = errors.New("nonce mismatch")
	ErrInvalidToken     = errors.New("invalid token")
)
