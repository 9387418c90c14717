// Package token issues the credentials that bind an applicant to an
// onboarding session. Only the SHA-256 of a credential is ever persisted.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

const (
	// AccessCodeAlphabet omits 0/O and 1/I/L so codes survive being read aloud.
	AccessCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	AccessCodeLength   = 6
	bearerBytes        = 32

	DefaultRemoteTTL = 72 * time.Hour
	DefaultWalkInTTL = 120 * time.Hour
)

// Credential is a freshly issued token. Token is the clear value and must
// only be handed to the candidate.
type Credential struct {
	Token     string
	Kind      models.TokenKind
	Hash      string
	ExpiresAt time.Time
}

// Policy sets the lifetime per token kind.
type Policy struct {
	RemoteTTL time.Duration
	WalkInTTL time.Duration
}

func (p Policy) ttl(kind models.TokenKind) time.Duration {
	switch kind {
	case models.TokenKindAccessCode:
		if p.WalkInTTL > 0 {
			return p.WalkInTTL
		}
		return DefaultWalkInTTL
	default:
		if p.RemoteTTL > 0 {
			return p.RemoteTTL
		}
		return DefaultRemoteTTL
	}
}

// Issuer generates credentials.
type Issuer struct {
	policy Policy
	random io.Reader
}

type Option func(*Issuer)

// WithRandom replaces the entropy source.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) {
		i.random = r
	}
}

func NewIssuer(policy Policy, opts ...Option) *Issuer {
	i := &Issuer{policy: policy, random: rand.Reader}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue creates a credential of kind expiring after the policy TTL.
func (i *Issuer) Issue(kind models.TokenKind, now time.Time) (Credential, error) {
	var (
		raw string
		err error
	)
	switch kind {
	case models.TokenKindAccessCode:
		raw, err = i.accessCode()
	case models.TokenKindBearer:
		raw, err = i.bearer()
	default:
		return Credential{}, dErrors.New(dErrors.CodeBadRequest, "unsupported token kind")
	}
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		Token:     raw,
		Kind:      kind,
		Hash:      Hash(raw),
		ExpiresAt: now.Add(i.policy.ttl(kind)),
	}, nil
}

func (i *Issuer) accessCode() (string, error) {
	limit := big.NewInt(int64(len(AccessCodeAlphabet)))
	var b strings.Builder
	b.Grow(AccessCodeLength)
	for range AccessCodeLength {
		n, err := rand.Int(i.random, limit)
		if err != nil {
			return "", fmt.Errorf("could not generate access code: %w", err)
		}
		b.WriteByte(AccessCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (i *Issuer) bearer() (string, error) {
	buf := make([]byte, bearerBytes)
	if _, err := io.ReadFull(i.random, buf); err != nil {
		return "", fmt.Errorf("could not generate bearer token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Normalize canonicalizes user-typed input. Anything shaped like an access
// code is upper-cased with spaces and dashes removed; bearer tokens are
// case-sensitive and only trimmed.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, strings.ToUpper(raw))
	if len(compact) == AccessCodeLength && strings.Trim(compact, AccessCodeAlphabet) == "" {
		return compact
	}
	return raw
}

// Hash returns the hex SHA-256 of the normalized token.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(Normalize(raw)))
	return hex.EncodeToString(sum[:])
}

// IsExpired is monotonic in now.
func IsExpired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}
