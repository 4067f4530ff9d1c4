package dto

import "time"

// RegisterSessionRequest is submitted by the login flow when a user signs
// in on a device. SessionID is optional; when empty the registry assigns
// one and the auth service embeds it in the issued token.
type RegisterSessionRequest struct {
	SessionID string     `json:"sessionId,omitempty"`
	UserID    string     `json:"userId"`
	DeviceID  string     `json:"deviceId"`
	Platform  string     `json:"platform"`
	PushToken string     `json:"pushToken,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type PushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type KickRequest struct {
	Reason string `json:"reason,omitempty"`
}
