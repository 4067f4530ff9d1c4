package domain

import "time"

// Platform is the mobile OS a session runs on. The set is closed; anything
// else is rejected at the boundary.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

func (p Platform) IsValid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Session is one authenticated device login. The auth service creates the
// row at login; this subsystem owns its push registration, activity and
// sync bookkeeping from then on.
type Session struct {
	ID           SessionID  `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	UserID       UserID     `gorm:"type:uuid;index" db:"user_id" json:"userId"`
	DeviceID     string     `gorm:"type:text;not null;index:ix_sessions_user_device" db:"device_id" json:"deviceId"`
	Platform     Platform   `gorm:"type:text;not null" db:"platform" json:"platform"`
	PushToken    *string    `gorm:"type:text;index" db:"push_token" json:"pushToken,omitempty"`
	Active       bool       `gorm:"not null;index" db:"active" json:"active"`
	LastActiveAt time.Time  `gorm:"not null" db:"last_active_at" json:"lastActiveAt"`
	LastSyncAt   *time.Time `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"not null" db:"updated_at" json:"-"`
}

func (Session) TableName() string { return "sessions" }

// Expired reports whether the session passed its expiry at the given time.
// A nil ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Pushable reports whether the session may receive pushes: active, not
// expired, and holding a registration token.
func (s Session) Pushable(now time.Time) bool {
	return s.Active && !s.Expired(now) && s.PushToken != nil && *s.PushToken != ""
}
