package domain

import (
	"time"

	"github.com/funlifew/Push-Notification-Server/internal/phone"
)

type User struct {
	ID           string       `json:"id"`
	PhoneNumber  phone.Number `json:"phone_number"`
	Email        string       `json:"email"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	PasswordHash string       `json:"-"`
	IsActive     bool         `json:"is_active"`
	IsStaff      bool         `json:"is_staff"`
	IsSuperuser  bool         `json:"is_superuser"`
	DateJoined   time.Time    `json:"date_joined"`
	DateUpdated  time.Time    `json:"date_updated"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
