package users

import "time"

type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"not null;uniqueIndex" json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Password       string    `gorm:"-" json:"password,omitempty"`
	HashedPassword string    `json:"-"`
	Role           string    `gorm:"default:'user'" json:"role"`
	CreatedAt      time.Time `json:"date_joined"`
	UpdatedAt      time.Time `json:"updated_at"`
}
