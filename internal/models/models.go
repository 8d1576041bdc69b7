package models

import "time"

type User struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string     `gorm:"uniqueIndex;not null"     json:"email"`
	Name            string     `json:"name"`
	PasswordHash    string     `gorm:"not null"                 json:"-"`
	RoleID          *uint      `gorm:"index"                    json:"role_id,omitempty"`
	IsEmailVerified bool       `gorm:"default:false"            json:"is_email_verified"`
	IsLocked        bool       `gorm:"default:false"            json:"is_locked"`
	LockDuration    *time.Time `json:"lock_duration,omitempty"`
	// LoginAttempts counts down from the configured maximum and is reset on
	// a successful login. The account locks when it reaches zero.
	LoginAttempts int       `gorm:"not null;default:0" json:"-"`
	CreatedBy     *uint     `json:"created_by,omitempty"`
	UpdatedBy     *uint     `json:"updated_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LockExpired reports whether a lock is past its expiry. The is_locked flag
// is cleared lazily, on the next successful login.
func (u *User) LockExpired(now time.Time) bool {
	return u.LockDuration == nil || !u.LockDuration.After(now)
}

type Token struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Token holds the sha256 hex digest of the signed string, never the raw
	// token itself.
	Token       string    `gorm:"uniqueIndex;not null" json:"-"`
	UserID      uint      `gorm:"index;not null"       json:"user_id"`
	Type        string    `gorm:"index;not null"       json:"type"`
	JTI         string    `json:"jti"`
	ExpiresAt   int64     `gorm:"not null"             json:"expires_at"`
	Blacklisted bool      `gorm:"default:false"        json:"blacklisted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired uses a strict comparison: a token is expired once expires < now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt < now.Unix()
}

type Role struct {
	ID          uint         `gorm:"primaryKey"           json:"id"`
	Name        string       `gorm:"uniqueIndex;not null" json:"name"`
	IsActive    bool         `gorm:"default:true"         json:"is_active"`
	Permissions []Permission `gorm:"many2many:role_permissions" json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Permission struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	IsActive  bool      `gorm:"default:true"         json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
