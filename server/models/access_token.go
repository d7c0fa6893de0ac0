package models

// AccessToken is the login session record. One row per user - login
// reuses a live token, logout deletes the row which makes the signed
// token worthless even before it expires.
type AccessToken struct {
	BaseModel
	Token  string `json:"-" gorm:"not null"`
	UserID uint   `json:"user_id" gorm:"not null;unique"`
}

func FindAccessToken(userID interface{}) (*AccessToken, error) {
	accessToken := AccessToken{}
	err := db.First(&accessToken, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return &accessToken, nil
}

func CreateAccessToken(accessToken *AccessToken) error {
	return db.Create(accessToken).Error
}

// DeleteAccessToken revokes the user's token. Deleting a token that's
// already gone is a no-op, so logout stays idempotent.
func DeleteAccessToken(userID interface{}) error {
	return db.Where("user_id = ?", userID).Delete(&AccessToken{}).Error
}
