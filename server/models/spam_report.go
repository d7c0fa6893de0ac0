package models

import (
	"gorm.io/gorm"
)

// SpamReport is one user's assertion that a number is spam. A user can
// report a given number at most once; reports are never mutated.
type SpamReport struct {
	BaseModel
	PhoneNumber string `json:"phone_number" validate:"required,e164" gorm:"not null;index;uniqueIndex:idx_spam_reports_number_reporter"`
	UserID      uint   `json:"user_id" gorm:"not null;uniqueIndex:idx_spam_reports_number_reporter"`
}

func CreateSpamReport(userID uint, phoneNumber string) (*SpamReport, error) {
	report := SpamReport{PhoneNumber: phoneNumber, UserID: userID}

	err := db.Create(&report).Error
	if err != nil {
		return nil, err
	}

	return &report, nil
}

// DeleteSpamReport removes the report user filed for phoneNumber,
// or gorm.ErrRecordNotFound if they never reported it.
func DeleteSpamReport(userID uint, phoneNumber string) error {
	result := db.Where("user_id = ? AND phone_number = ?", userID, phoneNumber).Delete(&SpamReport{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func SpamReportCount(phoneNumber string) (int64, error) {
	var count int64
	err := db.Model(&SpamReport{}).Where("phone_number = ?", phoneNumber).Count(&count).Error

	return count, err
}

func TotalSpamReports() (int64, error) {
	var count int64
	err := db.Model(&SpamReport{}).Count(&count).Error

	return count, err
}

// DistinctSpamNumbers returns every number with at least one report.
func DistinctSpamNumbers() ([]string, error) {
	phoneNumbers := []string{}

	err := db.Model(&SpamReport{}).
		Distinct("phone_number").
		Order("phone_number").
		Pluck("phone_number", &phoneNumbers).Error
	if err != nil {
		return nil, err
	}

	return phoneNumbers, nil
}

// SpamLikelihood scores phoneNumber as the percentage its reports make
// up of all reports in the system. The denominator is global, so a
// number's score shifts whenever any report is filed anywhere.
func SpamLikelihood(phoneNumber string) (float64, error) {
	totalReports, err := TotalSpamReports()
	if err != nil {
		return 0, err
	}

	if totalReports == 0 {
		return 0, nil
	}

	reportCount, err := SpamReportCount(phoneNumber)
	if err != nil {
		return 0, err
	}

	return float64(reportCount) / float64(totalReports) * 100, nil
}
