package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kyralis/authkit/internal/ids"
)

// Method defines a public type used by authkit APIs.
//
// Method instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Method string

const (
	// MethodHS256 is an exported constant or variable used by the authentication engine.
	MethodHS256 Method = "hs256"
	// MethodEd25519 is an exported constant or variable used by the authentication engine.
	MethodEd25519 Method = "ed25519"
)

// Token classes carried in the "use" claim. Parse enforces them so an
// access token never verifies as a refresh token or vice versa.
const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// ErrWrongClass is returned when a structurally valid token of one class is
// presented where the other class is required.
var ErrWrongClass = errors.New("token class mismatch")

// Keys holds the signing material for one token class. Secret is used for
// hs256; PrivateKey/PublicKey (raw 64/32-byte or PEM) for ed25519.
type Keys struct {
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
}

// Config defines a public type used by authkit APIs.
//
// Access and Refresh must carry distinct key material; the constructor
// rejects hs256 configurations where the two secrets are equal.
type Config struct {
	Method     Method
	Issuer     string
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Access     Keys
	Refresh    Keys

	// Now overrides the time source used for issuance and for exp/nbf
	// validation. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the payload of both token classes.
type Claims struct {
	Email    string `json:"email,omitempty"`
	TokenUse string `json:"use"`
	jwt.RegisteredClaims
}

type signer struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	ttl       time.Duration
	use       string
}

// Codec issues and verifies the two JWT classes and provides the digest and
// opaque-token helpers used by the recovery flows.
type Codec struct {
	issuer  string
	leeway  time.Duration
	access  signer
	refresh signer
	now     func() time.Time
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	access, err := newSigner(cfg.Method, cfg.Access, cfg.AccessTTL, useAccess)
	if err != nil {
		return nil, fmt.Errorf("access signer: %w", err)
	}
	refresh, err := newSigner(cfg.Method, cfg.Refresh, cfg.RefreshTTL, useRefresh)
	if err != nil {
		return nil, fmt.Errorf("refresh signer: %w", err)
	}
	if cfg.Method == MethodHS256 || cfg.Method == "" {
		if string(cfg.Access.Secret) == string(cfg.Refresh.Secret) {
			return nil, errors.New("access and refresh secrets must differ")
		}
	}

	return &Codec{
		issuer:  cfg.Issuer,
		leeway:  cfg.Leeway,
		access:  access,
		refresh: refresh,
		now:     cfg.Now,
	}, nil
}

func newSigner(method Method, keys Keys, ttl time.Duration, use string) (signer, error) {
	switch method {
	case MethodHS256, "":
		if len(keys.Secret) < 32 {
			return signer{}, errors.New("hs256 secret must be at least 32 bytes")
		}
		return signer{
			method:    jwt.SigningMethodHS256,
			signKey:   keys.Secret,
			verifyKey: keys.Secret,
			ttl:       ttl,
			use:       use,
		}, nil
	case MethodEd25519:
		priv, err := parseEdPrivateKey(keys.PrivateKey)
		if err != nil {
			return signer{}, err
		}
		pub, err := parseEdPublicKey(keys.PublicKey)
		if err != nil {
			return signer{}, err
		}
		return signer{
			method:    jwt.SigningMethodEdDSA,
			signKey:   priv,
			verifyKey: pub,
			ttl:       ttl,
			use:       use,
		}, nil
	default:
		return signer{}, errors.New("unsupported signing method")
	}
}

// IssueAccess signs a new access token for the account.
func (c *Codec) IssueAccess(accountID, email string) (string, error) {
	return c.issue(c.access, accountID, email)
}

// IssueRefresh signs a new refresh token and returns it with its claims so
// the caller can persist the expiry without re-parsing.
func (c *Codec) IssueRefresh(accountID, email string) (string, *Claims, error) {
	claims := c.newClaims(c.refresh, accountID, email)
	tok, err := jwt.NewWithClaims(c.refresh.method, claims).SignedString(c.refresh.signKey)
	if err != nil {
		return "", nil, err
	}
	return tok, &claims, nil
}

// ParseAccess verifies signature, expiry, issuer, and token class.
func (c *Codec) ParseAccess(tok string) (*Claims, error) {
	return c.parse(c.access, tok)
}

// ParseRefresh verifies signature, expiry, issuer, and token class.
func (c *Codec) ParseRefresh(tok string) (*Claims, error) {
	return c.parse(c.refresh, tok)
}

func (c *Codec) issue(s signer, accountID, email string) (string, error) {
	return jwt.NewWithClaims(s.method, c.newClaims(s, accountID, email)).SignedString(s.signKey)
}

func (c *Codec) newClaims(s signer, accountID, email string) Claims {
	now := c.now()
	return Claims{
		Email:    email,
		TokenUse: s.use,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes every token unique even when two are minted for
			// the same account within one second; refresh digests depend on it.
			ID:        ids.New(),
			Subject:   accountID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
}

func (c *Codec) parse(s signer, tok string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tok, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.TokenUse != s.use {
		return nil, ErrWrongClass
	}
	return claims, nil
}

// Digest returns the lowercase SHA-256 hex of a raw token. It is the only
// form of a refresh, verification, or reset token that may be persisted.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewOpaque returns a 64-char hex token from 32 random bytes, the raw form
// of verification and reset tokens.
func NewOpaque() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
