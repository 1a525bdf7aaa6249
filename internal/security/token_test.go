package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"

	"github.com/golang-jwt/jwt"
)

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims accessClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, &claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func validClaims() accessClaims {
	now := time.Now()
	return accessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "u1",
			Issuer:    "auth.socrates",
			Audience:  "collab",
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(time.Hour).Unix(),
		},
		Role: "student",
	}
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	key := newTestKey(t)
	v := NewJWTVerifier(&key.PublicKey, "auth.socrates", "collab", 30*time.Second)

	id, err := v.Verify(signToken(t, key, validClaims()))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.UserID != "u1" || id.Role != domain.RoleStudent {
		t.Fatalf("Verify() = %+v, want u1/student", id)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	key := newTestKey(t)
	v := NewJWTVerifier(&key.PublicKey, "auth.socrates", "collab", 30*time.Second)

	c := validClaims()
	c.Issuer = "someone-else"
	if _, err := v.Verify(signToken(t, key, c)); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Verify() error = %v, want ErrAuthentication", err)
	}
}

func TestVerifyRejectsExpiredBeyondSkew(t *testing.T) {
	key := newTestKey(t)
	v := NewJWTVerifier(&key.PublicKey, "auth.socrates", "collab", 30*time.Second)

	c := validClaims()
	c.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if _, err := v.Verify(signToken(t, key, c)); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Verify() error = %v, want ErrAuthentication", err)
	}
}

func TestVerifyAllowsExpiryWithinSkew(t *testing.T) {
	key := newTestKey(t)
	v := NewJWTVerifier(&key.PublicKey, "auth.socrates", "collab", time.Minute)

	c := validClaims()
	c.ExpiresAt = time.Now().Add(-10 * time.Second).Unix()
	if _, err := v.Verify(signToken(t, key, c)); err != nil {
		t.Fatalf("Verify() within skew error = %v", err)
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	key := newTestKey(t)
	v := NewJWTVerifier(&key.PublicKey, "auth.socrates", "collab", 30*time.Second)

	c := validClaims()
	c.Subject = ""
	if _, err := v.Verify(signToken(t, key, c)); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Verify() error = %v, want ErrAuthentication", err)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	key := newTestKey(t)
	v := NewJWTVerifier(&key.PublicKey, "auth.socrates", "collab", 30*time.Second)

	c := validClaims()
	c.Role = "superuser"
	if _, err := v.Verify(signToken(t, key, c)); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Verify() error = %v, want ErrAuthentication", err)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	key := newTestKey(t)
	other := newTestKey(t)
	v := NewJWTVerifier(&key.PublicKey, "auth.socrates", "collab", 30*time.Second)

	if _, err := v.Verify(signToken(t, other, validClaims())); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Verify() error = %v, want ErrAuthentication", err)
	}
}

func TestVerifyRejectsHMACAlgorithm(t *testing.T) {
	key := newTestKey(t)
	v := NewJWTVerifier(&key.PublicKey, "auth.socrates", "collab", 30*time.Second)

	c := validClaims()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &c).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, err := v.Verify(s); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Verify() error = %v, want ErrAuthentication", err)
	}
}

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{"tok": {UserID: "u1", Role: domain.RoleTutor}}

	id, err := v.Verify("tok")
	if err != nil || id.UserID != "u1" {
		t.Fatalf("Verify(tok) = %+v, %v", id, err)
	}
	if _, err := v.Verify("forged"); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Verify(forged) error = %v, want ErrAuthentication", err)
	}
}
