package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"

	"github.com/iliyamo/product-catalog/internal/model"
)

// TokenKind distinguishes access tokens from refresh tokens.  A token of
// one kind is never accepted where the other is expected.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// ErrInvalidToken is returned for any token that fails parsing, signature
// verification, expiry checks or kind checks.  Callers never learn which.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of both token kinds.  The subject carries the user
// id, Role the role name and ID (jti) a random identifier used for
// revocation of refresh tokens.
type Claims struct {
	Kind TokenKind `json:"kind"`
	Role string    `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a numeric id.
func (c *Claims) UserID() (uint64, error) {
	var id uint64
	if _, err := fmt.Sscanf(c.Subject, "%d", &id); err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// UserRole parses the role claim.
func (c *Claims) UserRole() (model.Role, error) {
	r, err := model.ParseRole(c.Role)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return r, nil
}

// SignedToken is a serialized JWT with its identifier and expiry.
type SignedToken struct {
	Token string    // the serialized JWT string
	ID    string    // jti
	Exp   time.Time // the UTC expiration time
}

// Issuer signs and verifies HS256 tokens.  It is stateless apart from the
// secret and TTLs, so a single value is shared by all requests.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer builds an Issuer.  Non-positive TTLs fall back to 15 minutes
// and 7 days.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// AccessTTL returns the lifetime of access tokens (also the cookie MaxAge).
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the lifetime of refresh tokens.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess signs a short-lived access token for the user.
func (i *Issuer) IssueAccess(userID uint64, role model.Role) (SignedToken, error) {
	return i.issue(KindAccess, userID, role, i.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the user.
func (i *Issuer) IssueRefresh(userID uint64, role model.Role) (SignedToken, error) {
	return i.issue(KindRefresh, userID, role, i.refreshTTL)
}

func (i *Issuer) issue(kind TokenKind, userID uint64, role model.Role, ttl time.Duration) (SignedToken, error) {
	now := i.now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := Claims{
		Kind: kind,
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, ID: jti, Exp: exp}, nil
}

// ParseAccess verifies an access token and returns its claims.
func (i *Issuer) ParseAccess(raw string) (*Claims, error) { return i.parse(raw, KindAccess) }

// ParseRefresh verifies a refresh token and returns its claims.
func (i *Issuer) ParseRefresh(raw string) (*Claims, error) { return i.parse(raw, KindRefresh) }

func (i *Issuer) parse(raw string, want TokenKind) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != want {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	if _, err := claims.UserRole(); err != nil {
		return nil, err
	}
	return claims, nil
}
