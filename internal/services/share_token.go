package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	DefaultShareTokenLength      = 10
	DefaultShareTokenMaxAttempts = 8

	shareTokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var ErrShareTokenExhausted = errors.New("share token: no unique token after max attempts")

// ShareTokenGenerator draws random base62 tokens until Exists reports one
// that is free, giving up after MaxAttempts.
type ShareTokenGenerator struct {
	Exists      func(ctx context.Context, token string) (bool, error)
	Length      int
	MaxAttempts int

	random func(n int) (string, error)
}

func NewShareTokenGenerator(exists func(ctx context.Context, token string) (bool, error)) *ShareTokenGenerator {
	return &ShareTokenGenerator{
		Exists:      exists,
		Length:      DefaultShareTokenLength,
		MaxAttempts: DefaultShareTokenMaxAttempts,
	}
}

func (g *ShareTokenGenerator) Generate(ctx context.Context) (string, error) {
	length := g.Length
	if length <= 0 {
		length = DefaultShareTokenLength
	}
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultShareTokenMaxAttempts
	}
	random := g.random
	if random == nil {
		random = randomToken
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := random(length)
		if err != nil {
			return "", fmt.Errorf("share token: %w", err)
		}
		if g.Exists == nil {
			return tok, nil
		}
		taken, err := g.Exists(ctx, tok)
		if err != nil {
			return "", fmt.Errorf("share token: %w", err)
		}
		if !taken {
			return tok, nil
		}
	}
	return "", fmt.Errorf("%w (%d)", ErrShareTokenExhausted, attempts)
}

func randomToken(n int) (string, error) {
	max := big.NewInt(int64(len(shareTokenAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = shareTokenAlphabet[idx.Int64()]
	}
	return string(b), nil
}
