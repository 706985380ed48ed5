package jwt

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	errs "github.com/shashank8536/Campus-MarketPlace/errors"
)

const (
	AccessTokenValidity  = time.Hour * 24
	RefreshTokenValidity = time.Hour * 24 * 7
)

// GenerateTokenPair returns an access token and a refresh token for the user.
func GenerateTokenPair(email, secret string, userID uuid.UUID) (string, string, error) {
	accessToken, err := generateToken(email, secret, userID, "access", AccessTokenValidity)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := generateToken(email, secret, userID, "refresh", RefreshTokenValidity)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func generateToken(email, secret string, userID uuid.UUID, tokenType string, validity time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":    userID.String(),
		"email": email,
		"type":  tokenType,
		"exp":   time.Now().Add(validity).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAndGetClaims verifies the token signature and expiry and returns
// its claims.
func ValidateAndGetClaims(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.New("unexpected signing method", http.StatusUnauthorized)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errs.New("invalid token", http.StatusUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errs.New("invalid token", http.StatusUnauthorized)
	}
	return claims, nil
}

// UserIDFromClaims extracts the user id carried in the "id" claim.
func UserIDFromClaims(claims jwt.MapClaims) (uuid.UUID, error) {
	raw, ok := claims["id"].(string)
	if !ok {
		return uuid.Nil, errs.New("invalid userID format", http.StatusBadRequest)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.New("invalid userID format", http.StatusBadRequest)
	}
	return id, nil
}
