package token

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Error kinds returned by Decode. Callers branch on these with errors.Is.
var (
	ErrMalformed    = errors.New("malformed token")
	ErrBadSignature = errors.New("invalid token signature")
	ErrExpired      = errors.New("token expired")
)

// Claims is the decoded claim set of a session token.
type Claims struct {
	Subject   string // Username the token was issued for
	Status    string // Session status the token carries
	TokenID   string // Unique token ID (jti)
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies session tokens with a process-wide HMAC secret.
// Issuing and decoding are pure functions of inputs + secret + clock, so a
// Codec is safe for concurrent use.
type Codec struct {
	secret  []byte
	method  jwtlib.SigningMethod
	nowFunc func() time.Time
}

// CodecOption defines a function type to modify the Codec instance.
type CodecOption func(*Codec)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// New creates a Codec for the given secret and signing algorithm identifier
// ("HS256", "HS384" or "HS512").
func New(secret, algorithm string, options ...CodecOption) (*Codec, error) {
	var method jwtlib.SigningMethod
	switch algorithm {
	case "HS256":
		method = jwtlib.SigningMethodHS256
	case "HS384":
		method = jwtlib.SigningMethodHS384
	case "HS512":
		method = jwtlib.SigningMethodHS512
	default:
		return nil, errors.New("unsupported signing algorithm: " + algorithm)
	}
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}

	codec := &Codec{
		secret:  []byte(secret),
		method:  method,
		nowFunc: time.Now,
	}

	for _, opt := range options {
		opt(codec)
	}

	return codec, nil
}

// Issue creates a signed token asserting a subject and status, expiring
// ttl from now.
func (c *Codec) Issue(subject, status string, ttl time.Duration) (string, error) {
	now := c.nowFunc()
	claims := jwtlib.MapClaims{
		"sub":    subject,                     // The username the token belongs to
		"status": status,                      // Session status at issue time
		"iat":    now.Unix(),                  // Issued At
		"exp":    now.Add(ttl).Unix(),         // Expiry
		"jti":    uuid.New().String(),         // Unique token ID
	}
	return jwtlib.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// Decode verifies the signature and expiry of a raw token and returns its
// claims. Errors are one of ErrMalformed, ErrBadSignature or ErrExpired.
func (c *Codec) Decode(raw string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(raw, jwtlib.MapClaims{}, c.verificationKey,
		jwtlib.WithValidMethods([]string{c.method.Alg()}),
		jwtlib.WithTimeFunc(c.nowFunc),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}
	return claimsFrom(parsed)
}

// DecodeExpired verifies only the signature, skipping expiry validation.
// The renewal flow uses it to recover the subject of an expired token;
// callers must treat the returned identity as provisional.
func (c *Codec) DecodeExpired(raw string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(raw, jwtlib.MapClaims{}, c.verificationKey,
		jwtlib.WithValidMethods([]string{c.method.Alg()}),
		jwtlib.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}
	return claimsFrom(parsed)
}

func (c *Codec) verificationKey(token *jwtlib.Token) (any, error) {
	if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return c.secret, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}

func claimsFrom(token *jwtlib.Token) (*Claims, error) {
	mapClaims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, ErrMalformed
	}
	status, _ := mapClaims["status"].(string)
	jti, _ := mapClaims["jti"].(string)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	return &Claims{
		Subject:   sub,
		Status:    status,
		TokenID:   jti,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
