package models

import (
	"time"

	"github.com/google/uuid"
)

// User — сотрудник бэк-офиса турагентства.
type User struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
