package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"room-chat/domain"
	"room-chat/errors"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "room-chat"

// CustomClaims defines the structure of the data stored inside the JWT.
// `id` and `name` match the tokens issued by the account service.
type CustomClaims struct {
	UserID string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with the shared secret.
// It holds no state besides the secret and is safe for concurrent use.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify parses and validates the signature and expiration of a JWT string.
func (v *Verifier) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, errors.ErrMissingToken
	}

	token, err := v.parser.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, errors.ErrExpiredToken
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, errors.ErrInvalidToken
	}
	if claims.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing id claim", errors.ErrInvalidToken)
	}

	return domain.Identity{ID: domain.IdentityID(claims.UserID), DisplayName: claims.Name}, nil
}

// Issuer signs tokens. The chat server never issues tokens itself,
// this is used by cmd/token and by tests.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// GenerateToken creates a signed JWT for a specific user.
func (i *Issuer) GenerateToken(identity domain.Identity, roles []string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: string(identity.ID),
		Name:   identity.DisplayName,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	// HS256 (HMAC with SHA256)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}
