package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a service token.
type Claims struct {
	Service  Role   `json:"service"`
	CallerID string `json:"id"`
	jwt.RegisteredClaims
}

// Config holds the process-wide signing configuration. It is read once at
// startup and never mutated.
type Config struct {
	Secret string
	// TTL of issued tokens. Zero issues tokens without an exp claim, which
	// bounds trust by signature validity alone.
	TTL    time.Duration
	Issuer string
}

// Issuer issues service tokens.
type Issuer interface {
	Issue(role Role, callerID string) (string, error)
}

// Verifier verifies service tokens.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// Service signs and verifies HS256 service tokens with a single shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token signing secret is empty")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("token ttl must not be negative, got %s", cfg.TTL)
	}
	return &Service{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

func (s *Service) Issue(role Role, callerID string) (string, error) {
	if role == RoleUnknown {
		return "", fmt.Errorf("cannot issue token for %s role", role)
	}

	now := s.now()
	claims := Claims{
		Service:  role,
		CallerID: callerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   s.issuer,
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, &AuthError{Kind: KindMalformed, Err: errors.New("empty token")}
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, &AuthError{Kind: KindMalformed, Err: errors.New("unexpected claims")}
	}
	return claims, nil
}

// Authorize checks that the verified caller holds the role expected by the
// endpoint being served.
func Authorize(claims *Claims, expected Role) error {
	if claims == nil {
		return ErrMissingCredential
	}
	switch expected {
	case RoleProducer, RoleRelay, RoleSink:
		if claims.Service != expected {
			return &AuthError{
				Kind: KindWrongRole,
				Err:  fmt.Errorf("expected %s, got %s", expected, claims.Service),
			}
		}
		return nil
	case RoleUnknown:
		return &AuthError{Kind: KindWrongRole, Err: errors.New("endpoint expects no valid role")}
	default:
		return &AuthError{Kind: KindWrongRole, Err: fmt.Errorf("unsupported role %s", expected)}
	}
}

func classify(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &AuthError{Kind: KindMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return &AuthError{Kind: KindExpired, Err: err}
	default:
		// signature mismatch, wrong algorithm, unverifiable token
		return &AuthError{Kind: KindInvalidSignature, Err: err}
	}
}
