// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	FirstName    string   `json:"first_name" gorm:"size:150"`
	LastName     string   `json:"last_name" gorm:"size:150"`
	Email        string   `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Username     string   `json:"username" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string   `json:"-" gorm:"size:255;not null"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);default:'user'"`
	Profile      Profile  `json:"-" gorm:"embedded;embeddedPrefix:profile_"`
}

// Profile holds the password-reset state. A consumed token is cleared, an
// expired one stays until the next forgot-password request overwrites it.
type Profile struct {
	ResetPasswordToken  string     `gorm:"size:40;index"`
	ResetPasswordExpire *time.Time `gorm:"type:timestamptz"`
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
