package models

import (
	"strconv"
	"time"
)

type User struct {
	ID                     int    `gorm:"primary_key;autoIncrement" json:"id"`
	PasswordHash           string `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	Email                  string `gorm:"unique;not null" json:"email"`
	EmailVerified          bool   `gorm:"default:false" json:"email_verified"`
	EmailVerificationToken string `json:"-"` // token for email verification
	SessionToken           string `json:"-"`
}

// TenantID is the opaque id the section list of this user is keyed by.
func (u User) TenantID() string {
	return TenantID(u.ID)
}

func TenantID(userID int) string {
	return strconv.Itoa(userID)
}

type Restaurant struct {
	ID          int       `gorm:"primary_key;autoIncrement" json:"id"`
	UserID      int       `gorm:"not null;uniqueIndex" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"-"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"` // markdown, shown under the hero
	Subdomain   string    `gorm:"unique;not null;index" json:"subdomain"`
	Theme       string    `gorm:"type:text" json:"theme"`             // optional CSS
	IsListed    bool      `gorm:"default:false;index" json:"is_listed"` // shown on the platform index
	CreatedAt   time.Time `json:"created_at"`
}

// SectionRecord is one row of a tenant's stored section list.
type SectionRecord struct {
	ID        uint   `gorm:"primary_key;autoIncrement"`
	TenantID  string `gorm:"not null;index:idx_section_tenant_position"`
	Position  int    `gorm:"not null;index:idx_section_tenant_position"`
	SectionID string `gorm:"not null"`
	Name      string `gorm:"not null"`
	Kind      string `gorm:"not null"`
	IsLocked  bool   `gorm:"default:false"`
	Priority  int
}

// SectionListState carries the revision used to reject stale saves.
type SectionListState struct {
	TenantID  string `gorm:"primary_key"`
	Revision  int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// SectionContent is the markdown body edited for a section.
type SectionContent struct {
	ID        uint      `gorm:"primary_key;autoIncrement"`
	TenantID  string    `gorm:"not null;uniqueIndex:idx_content_tenant_section"`
	SectionID string    `gorm:"not null;uniqueIndex:idx_content_tenant_section"`
	Body      string    `gorm:"type:text" json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}
