package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 12 * time.Hour

// Claims identify the driver a token was issued to. The dispatch server is
// the issuer; the agent only verifies.
type Claims struct {
	DriverID string `json:"driver_id"`
	jwt.RegisteredClaims
}

// IssueToken signs a driver token with the shared secret. Used by local
// tooling and tests; production tokens come from the dispatch server.
func IssueToken(secret, driverID string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	claims := Claims{
		DriverID: driverID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
