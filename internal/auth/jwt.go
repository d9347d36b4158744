package auth

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeviceClaims represents the claims this client presents to the backend
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateDeviceToken signs a short-lived token identifying this device
func GenerateDeviceToken(deviceID string, secret []byte) (string, error) {
	claims := &DeviceClaims{
		DeviceID: deviceID,
		Role:     "device",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// DialURL appends a signed device token to a websocket endpoint. An empty
// secret leaves the URL untouched for backends running without auth, the
// demo server included.
func DialURL(endpoint, deviceID string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return endpoint, nil
	}

	token, err := GenerateDeviceToken(deviceID, secret)
	if err != nil {
		return "", fmt.Errorf("sign device token: %w", err)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ValidateToken parses and verifies a device token. Used by tests and by
// operators debugging auth failures against the backend.
func ValidateToken(tokenString string, secret []byte) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*DeviceClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}
