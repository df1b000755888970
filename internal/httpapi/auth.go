package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Context key for the authenticated device
type contextKey string

const deviceContextKey contextKey = "device"

// JWTClaims represents the claims in the JWT token
type JWTClaims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"device_id"`
}

// withAuth is middleware that requires valid JWT authentication
func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, `{"error": "invalid authorization format"}`, http.StatusUnauthorized)
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(r.cfg.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || claims.DeviceID == "" {
			http.Error(w, `{"error": "invalid token claims"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(req.Context(), deviceContextKey, claims.DeviceID)
		next.ServeHTTP(w, req.WithContext(ctx))
	}
}

// getAuthDevice extracts the authenticated device ID from context
func getAuthDevice(ctx context.Context) string {
	device, _ := ctx.Value(deviceContextKey).(string)
	return device
}

// handleAuthToken exchanges the shared enrollment key for a device JWT.
func (r *Router) handleAuthToken(w http.ResponseWriter, req *http.Request) {
	if r.cfg.EnrollKey == "" || r.cfg.JWTSecret == "" {
		http.Error(w, `{"error": "enrollment not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var body struct {
		DeviceID  string `json:"device_id"`
		EnrollKey string `json:"enroll_key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if body.DeviceID == "" {
		http.Error(w, `{"error": "device_id is required"}`, http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(body.EnrollKey), []byte(r.cfg.EnrollKey)) != 1 {
		http.Error(w, `{"error": "invalid enrollment key"}`, http.StatusUnauthorized)
		return
	}

	signed, expiresAt, err := r.generateJWT(body.DeviceID)
	if err != nil {
		captureError(req, err, "auth: failed to sign token")
		http.Error(w, `{"error": "failed to issue token"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Printf("auth: issued token for device %s", body.DeviceID)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      signed,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// generateJWT creates a new JWT token for a device
func (r *Router) generateJWT(deviceID string) (string, time.Time, error) {
	expiresAt := nowUTC().Add(r.cfg.JWTExpiry)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(nowUTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		DeviceID: deviceID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(r.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}
