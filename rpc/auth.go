package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/dan-merlea/sc-krogan-public/crypto"
)

// CallerHeader names the caller when authentication is disabled. It is
// ignored whenever bearer tokens are enforced.
const CallerHeader = "X-Caller-Address"

type AuthConfig struct {
	Enabled   bool
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Authenticator resolves the calling address of mutating requests from an
// HS256 bearer token whose subject is the caller's address.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
}

func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	secret := []byte(strings.TrimSpace(cfg.Secret))
	if cfg.Enabled && len(secret) == 0 {
		return nil, errors.New("rpc: auth enabled without secret")
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: secret}, nil
}

func (a *Authenticator) Authenticate(r *http.Request) (crypto.Address, *RPCError) {
	if !a.cfg.Enabled {
		raw := strings.TrimSpace(r.Header.Get(CallerHeader))
		if raw == "" {
			return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "missing " + CallerHeader + " header"}
		}
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "invalid caller address"}
		}
		return addr, nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	token := extractBearer(header)
	if token == "" {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	caller, err := a.parseToken(token)
	if err != nil {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "invalid token", Data: err.Error()}
	}
	return caller, nil
}

func (a *Authenticator) parseToken(tokenString string) (crypto.Address, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return crypto.Address{}, err
	}
	if !token.Valid {
		return crypto.Address{}, errors.New("token invalid")
	}
	caller, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("subject: %w", err)
	}
	return caller, nil
}

func extractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// MintToken issues an HS256 token naming caller as subject.
func MintToken(secret string, caller crypto.Address, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("rpc: empty token secret")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := jwt.RegisteredClaims{
		Subject:   caller.String(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}
