package models

import (
	"gorm.io/gorm"
)

// Contact is a private address book entry owned by a single user.
// Two users may each save the same number, but a user can't save
// the same number twice.
type Contact struct {
	BaseModel
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required,e164" gorm:"not null;uniqueIndex:idx_contacts_owner_number"`
	UserID      uint   `json:"user_id" gorm:"not null;uniqueIndex:idx_contacts_owner_number"`
}

func (user *User) AddContact(contact *Contact) error {
	contact.UserID = user.ID
	return db.Create(contact).Error
}

func (user *User) LoadContacts() error {
	// TODO: Add pagination
	return db.Limit(500).Find(&user.Contacts, "user_id = ?", user.ID).Error
}

// DeleteContact removes the contact only if user owns it, so a caller
// can't delete another user's contact by guessing ids.
func (user *User) DeleteContact(id interface{}) error {
	result := db.Where("user_id = ?", user.ID).Delete(&Contact{}, id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (user *User) HasContactWithNumber(phoneNumber string) (bool, error) {
	var count int64
	err := db.Model(&Contact{}).
		Where("user_id = ? AND phone_number = ?", user.ID, phoneNumber).
		Count(&count).Error

	return count > 0, err
}

// SearchContactsByName returns contacts across all address books whose
// name contains the query(case-insensitive), ordered by name. Contacts
// whose number belongs to a registered user are left out - the
// registered identity takes precedence over address book aliases.
func SearchContactsByName(query string) ([]Contact, error) {
	contacts := []Contact{}

	err := db.Where("LOWER(name) LIKE ?", containsPattern(query)).
		Where("phone_number NOT IN (?)", db.Model(&User{}).Select("phone_number")).
		Order("name").
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

// ContactsByPhone returns every contact saved under the exact number,
// one row per address book it appears in.
func ContactsByPhone(phoneNumber string) ([]Contact, error) {
	contacts := []Contact{}

	err := db.Where("phone_number = ?", phoneNumber).Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}
