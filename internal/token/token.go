package token

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/jaevor/go-nanoid"
	"golang.org/x/crypto/bcrypt"
)

// tokenLength gives >256 bits over nanoid's 64-character alphabet
// (43 * 6 = 258 bits).
const tokenLength = 43

// Issuer generates share tokens, session tokens and one-time numeric
// access codes, and hashes the codes for storage. The plaintext code is
// handed out exactly once at creation; only its bcrypt hash survives.
type Issuer struct {
	newShareToken   func() string
	newSessionToken func() string
	bcryptCost      int
}

func NewIssuer(bcryptCost int) (*Issuer, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}

	shareGen, err := nanoid.Standard(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize share token generator: %w", err)
	}
	sessionGen, err := nanoid.Standard(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session token generator: %w", err)
	}

	return &Issuer{
		newShareToken:   shareGen,
		newSessionToken: sessionGen,
		bcryptCost:      bcryptCost,
	}, nil
}

func (i *Issuer) NewShareToken() string {
	return i.newShareToken()
}

func (i *Issuer) NewSessionToken() string {
	return i.newSessionToken()
}

// NewAccessCode returns a 6-digit code uniform over [100000, 999999].
func (i *Issuer) NewAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to draw access code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func (i *Issuer) HashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), i.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (i *Issuer) VerifyCode(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
