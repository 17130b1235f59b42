package users

import "strings"

// User is one registered account. Passwords are stored only as bcrypt
// hashes.
type User struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null" json:"user_id"`
	Email            string `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	DisplayName      string `gorm:"column:display_name;size:320;not null;default:''" json:"display_name"`
	PasswordHash     string `gorm:"column:password_hash;size:190;not null" json:"-"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
