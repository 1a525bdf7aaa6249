package security

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"

	"github.com/golang-jwt/jwt"
)

// Identity is what the gateway attaches to a connection after a successful
// handshake. Immutable for the life of the connection.
type Identity struct {
	UserID string
	Role   domain.Role
}

// Verifier abstracts token verification so transports can run against a
// stub in tests. Token issuance lives in the auth service; this side only
// consumes.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier validates RS256 access tokens: signature, issuer, audience
// and time claims with a clock-skew allowance.
type JWTVerifier struct {
	public    *rsa.PublicKey
	issuer    string
	audience  string
	clockSkew time.Duration
}

func NewJWTVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *JWTVerifier {
	return &JWTVerifier{
		public:    public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}
}

type accessClaims struct {
	jwt.StandardClaims
	Role string `json:"role"`
}

func (v *JWTVerifier) Verify(tokenStr string) (Identity, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok || t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, domain.ErrAuthentication
		}
		return v.public, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	if !token.Valid {
		return Identity{}, domain.ErrAuthentication
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Identity{}, fmt.Errorf("%w: issuer", domain.ErrAuthentication)
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return Identity{}, fmt.Errorf("%w: audience", domain.ErrAuthentication)
	}

	now := time.Now()
	nbf := time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	if now.Before(nbf) || now.After(exp) {
		return Identity{}, fmt.Errorf("%w: token expired", domain.ErrAuthentication)
	}

	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", domain.ErrAuthentication)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: role claim", domain.ErrAuthentication)
	}

	return Identity{UserID: claims.Subject, Role: role}, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}

	return pub, nil
}

// StaticVerifier maps fixed tokens to identities; test double.
type StaticVerifier map[string]Identity

func (s StaticVerifier) Verify(token string) (Identity, error) {
	id, ok := s[token]
	if !ok {
		return Identity{}, domain.ErrAuthentication
	}
	return id, nil
}
