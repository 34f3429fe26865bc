package auth

import "time"

// Claims carries the authenticated viewer identity. The subject is the
// viewer id the mask engine evaluates access rules against.
type Claims struct {
	Sub       string `json:"sub"`
	TokenID   string `json:"jti"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type LoginRequest struct {
	Viewer string `json:"viewer"`
	Secret string `json:"secret"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
