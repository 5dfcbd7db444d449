package assertion

import (
	"errors"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims carry the identity linkage and a snapshot of role names taken at issue time.
type Claims struct {
	UserID types.ID `json:"uid"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Codec issues and validates HS256 signed assertions. It never consults any store.
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string

	Now func() time.Time
}

func NewCodec(secret string, ttl time.Duration, issuer string) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl, issuer: issuer, Now: time.Now}
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs an assertion for uid carrying roles. It returns the token and its expiry.
func (c *Codec) Issue(uid types.ID, roles []string) (string, time.Time, error) {
	now := c.Now()
	expiresAt := now.Add(c.ttl)
	if roles == nil {
		roles = []string{}
	}

	claims := Claims{
		UserID: uid,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   uid.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate verifies signature, algorithm, issuer and expiry.
// Failures wrap ErrTokenExpired or ErrTokenInvalid.
func (c *Codec) Validate(token string) (*Claims, error) {
	claims := Claims{}
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.UserID == 0 || claims.Subject != claims.UserID.String() {
		return nil, fmt.Errorf("%w: subject mismatch", ErrTokenInvalid)
	}
	return &claims, nil
}
