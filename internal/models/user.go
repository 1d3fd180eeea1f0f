package models

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string // "user" or "admin"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
