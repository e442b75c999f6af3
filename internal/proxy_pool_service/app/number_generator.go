package app

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NumberSource produces candidate proxy numbers.
type NumberSource interface {
	Next() (string, error)
}

// RandomNumberSource builds numbers as Prefix followed by Digits uniformly random digits.
type RandomNumberSource struct {
	Prefix string
	Digits int
}

func (g RandomNumberSource) Next() (string, error) {
	if g.Digits <= 0 || g.Digits > 18 {
		return "", fmt.Errorf("invalid suffix digit count %d", g.Digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.Digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generating proxy number: %w", err)
	}
	return fmt.Sprintf("%s%0*d", g.Prefix, g.Digits, n.Int64()), nil
}
