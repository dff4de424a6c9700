package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed        = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrNotYetValid      = errors.New("token not valid yet")
	ErrInvalidClaims    = errors.New("claims require a user id and email")
)

// Claims is the identity carried inside a session token.
type Claims struct {
	UserId string
	Email  string
}

type sessionClaims struct {
	Id    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens with a process-wide HMAC
// secret. It keeps no per-session state.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer copies secret so later changes to the caller's slice cannot
// affect verification. A non-positive ttl issues tokens without an exp claim.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &TokenIssuer{secret: key, ttl: ttl, now: time.Now}, nil
}

func (t *TokenIssuer) Issue(claims Claims) (string, error) {
	if claims.UserId == "" || claims.Email == "" {
		return "", ErrInvalidClaims
	}

	now := t.now()
	sc := sessionClaims{
		Id:    claims.UserId,
		Email: claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.ttl > 0 {
		sc.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sc)
	signedToken, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signedToken, nil
}

func (t *TokenIssuer) Verify(tokenString string) (Claims, error) {
	var sc sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &sc, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, classify(err)
	}

	if !token.Valid {
		return Claims{}, ErrInvalidSignature
	}

	return toClaims(sc)
}

// ParseUnverified reads the claims without checking the signature. Clients use
// it to learn their own user id; servers must call Verify instead.
func ParseUnverified(tokenString string) (Claims, error) {
	var sc sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &sc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return toClaims(sc)
}

func toClaims(sc sessionClaims) (Claims, error) {
	if sc.Id == "" {
		return Claims{}, fmt.Errorf("%w: missing id claim", ErrMalformed)
	}
	if sc.Email == "" {
		return Claims{}, fmt.Errorf("%w: missing email claim", ErrMalformed)
	}
	return Claims{UserId: sc.Id, Email: sc.Email}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", ErrNotYetValid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
