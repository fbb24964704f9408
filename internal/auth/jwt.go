// Package auth verifies identity provider credentials and resolves them to a
// subject id.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"socialapp/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidCredential covers malformed, expired or badly signed tokens.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrRevoked is returned for tokens whose jti is on the revocation list.
	ErrRevoked = errors.New("credential has been revoked")
)

const revocationKeyPrefix = "blacklist:"

// Verifier resolves a bearer credential to the caller's subject id.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// Options configures a JWTVerifier. Exactly one of Secret (HS256) or
// PublicKey (RS256) is used; PublicKey wins when both are set.
type Options struct {
	Secret    string
	PublicKey *rsa.PublicKey
	Issuer    string
	Audience  string
	// Revocations is optional. Without it no token is considered revoked.
	Revocations *redis.Client
}

// JWTVerifier validates JWTs issued by the identity provider.
type JWTVerifier struct {
	key         any
	methods     []string
	parser      *jwt.Parser
	revocations *redis.Client
}

// NewJWTVerifier creates a verifier from opts.
func NewJWTVerifier(opts Options) (*JWTVerifier, error) {
	v := &JWTVerifier{revocations: opts.Revocations}

	switch {
	case opts.PublicKey != nil:
		v.key = opts.PublicKey
		v.methods = []string{jwt.SigningMethodRS256.Alg()}
	case opts.Secret != "":
		v.key = []byte(opts.Secret)
		v.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, errors.New("jwt verifier needs a secret or a public key")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithLeeway(30 * time.Second),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	v.parser = jwt.NewParser(parserOpts...)

	return v, nil
}

// NewJWTVerifierFromConfig builds a verifier from application config, reading
// the RS256 public key from JWT_PUBLIC_KEY_FILE when set.
func NewJWTVerifierFromConfig(cfg *config.Config, rdb *redis.Client) (*JWTVerifier, error) {
	opts := Options{
		Secret:      cfg.JWTSecret,
		Issuer:      cfg.JWTIssuer,
		Audience:    cfg.JWTAudience,
		Revocations: rdb,
	}
	if cfg.JWTPublicKeyFile != "" {
		pemBytes, err := os.ReadFile(cfg.JWTPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt public key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		opts.PublicKey = key
	}
	return NewJWTVerifier(opts)
}

// Verify parses and validates the token and returns its subject.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := v.parser.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	if claims.ID != "" && v.revocations != nil {
		n, err := v.revocations.Exists(ctx, revocationKeyPrefix+claims.ID).Result()
		// Fail open on Redis errors to avoid locking every caller out.
		if err == nil && n > 0 {
			return "", ErrRevoked
		}
	}

	return claims.Subject, nil
}

// Revoke puts a token id on the revocation list until it would have expired.
func Revoke(ctx context.Context, rdb *redis.Client, jti string, expiresAt time.Time) error {
	if rdb == nil {
		return errors.New("revocation list unavailable")
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return rdb.Set(ctx, revocationKeyPrefix+jti, "1", ttl).Err()
}
