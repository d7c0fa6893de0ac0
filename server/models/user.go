package models

import (
	"fmt"

	"github.com/teniola/calldex/server/auth"
)

var (
	allFieldsExceptPassword = []string{"id",
		"username",
		"phone_number",
		"email",
		"created_at",
		"updated_at",
	}

	// phone_number is read-only after registration
	updatableFields = []string{"username", "email"}
)

type User struct {
	BaseModel
	Username    string       `json:"username" validate:"required" gorm:"not null;unique"`
	PhoneNumber string       `json:"phone_number" validate:"required,e164" gorm:"not null;unique"`
	Email       string       `json:"email,omitempty" validate:"omitempty,email"`
	Password    string       `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	Contacts    []Contact    `json:"contacts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	SpamReports []SpamReport `json:"spam_reports,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Update applies profile changes for user. Only fields in
// updatableFields ever make it to the db.
func (user *User) Update(data map[string]interface{}) error {
	return db.Model(&User{}).Where("id = ?", user.ID).Select(updatableFields).Updates(data).Error
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(phoneNumber string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "phone_number = ?", phoneNumber).Error

	if err != nil {
		return "", err
	}
	return user.Password, nil
}

func CreateUser(user *User) error {
	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	return db.Create(user).Error
}

// SearchUsersByName returns registered users whose username contains
// the query(case-insensitive), ordered by username.
func SearchUsersByName(query string) ([]User, error) {
	users := []User{}

	err := db.Select(allFieldsExceptPassword).
		Where("LOWER(username) LIKE ?", containsPattern(query)).
		Order("username").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return users, nil
}

func CountUsers() (int64, error) {
	var count int64
	err := db.Model(&User{}).Count(&count).Error

	return count, err
}
