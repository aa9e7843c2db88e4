package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/ports"
)

// AudienceSession is the audience of every session token
const AudienceSession = "session:access"

// DefaultTTL is the validity window of a session token
const DefaultTTL = time.Hour

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs
type JWTTokenizer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer. The secret is never part of a token.
func NewJWTTokenizer(secret []byte, issuer string, ttl time.Duration) *JWTTokenizer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWTTokenizer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// TTL returns the validity window applied to new sessions
func (j *JWTTokenizer) TTL() time.Duration {
	return j.ttl
}

// NewSession builds a session for the account starting now
func (j *JWTTokenizer) NewSession(accountID string, role core.Role) *core.Session {
	// JWT timestamps have second precision.
	now := j.now().UTC().Truncate(time.Second)
	return &core.Session{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(j.ttl),
	}
}

// SessionToToken converts a Session to a signed JWT token
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.AccountID,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Role: string(session.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession parses a session token and returns the associated session
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithAudience(AudienceSession),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type: %w", core.ErrInvalidToken)
	}

	role, ok := core.ParseRole(claims.Role)
	if !ok || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("incomplete claims: %w", core.ErrInvalidToken)
	}

	return &core.Session{
		ID:        claims.ID,
		AccountID: claims.Subject,
		Role:      role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
