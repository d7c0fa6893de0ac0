package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCreateSpamReportDuplicate(t *testing.T) {
	InitializeTestDb()

	anna := newTestUser("anna", "+14165550101")
	benga := newTestUser("benga", "+14165550102")
	assert.Nil(t, CreateUser(anna))
	assert.Nil(t, CreateUser(benga))

	_, err := CreateSpamReport(anna.ID, "+14165550900")
	assert.Nil(t, err)

	// a user may report a number at most once
	_, err = CreateSpamReport(anna.ID, "+14165550900")
	assert.True(t, IsUniqueConstraintError(err))

	// a different user's report of the same number counts separately
	_, err = CreateSpamReport(benga.ID, "+14165550900")
	assert.Nil(t, err)

	count, err := SpamReportCount("+14165550900")
	assert.Nil(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDeleteSpamReport(t *testing.T) {
	InitializeTestDb()

	anna := newTestUser("anna", "+14165550101")
	assert.Nil(t, CreateUser(anna))

	err := DeleteSpamReport(anna.ID, "+14165550900")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "never reported this number")

	_, err = CreateSpamReport(anna.ID, "+14165550900")
	assert.Nil(t, err)

	assert.Nil(t, DeleteSpamReport(anna.ID, "+14165550900"))

	count, err := SpamReportCount("+14165550900")
	assert.Nil(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSpamLikelihoodUsesGlobalDenominator(t *testing.T) {
	InitializeTestDb()

	anna := newTestUser("anna", "+14165550101")
	benga := newTestUser("benga", "+14165550102")
	assert.Nil(t, CreateUser(anna))
	assert.Nil(t, CreateUser(benga))

	likelihood, err := SpamLikelihood("+14165550900")
	assert.Nil(t, err)
	assert.Equal(t, float64(0), likelihood, "no reports at all scores zero")

	_, err = CreateSpamReport(anna.ID, "+14165550900")
	assert.Nil(t, err)

	likelihood, err = SpamLikelihood("+14165550900")
	assert.Nil(t, err)
	assert.Equal(t, float64(100), likelihood)

	// an unrelated report moves every number's score
	_, err = CreateSpamReport(benga.ID, "+14165550901")
	assert.Nil(t, err)

	likelihood, err = SpamLikelihood("+14165550900")
	assert.Nil(t, err)
	assert.Equal(t, float64(50), likelihood)
}

func TestDistinctSpamNumbers(t *testing.T) {
	InitializeTestDb()

	anna := newTestUser("anna", "+14165550101")
	benga := newTestUser("benga", "+14165550102")
	assert.Nil(t, CreateUser(anna))
	assert.Nil(t, CreateUser(benga))

	_, err := CreateSpamReport(anna.ID, "+14165550900")
	assert.Nil(t, err)
	_, err = CreateSpamReport(benga.ID, "+14165550900")
	assert.Nil(t, err)
	_, err = CreateSpamReport(benga.ID, "+14165550901")
	assert.Nil(t, err)

	phoneNumbers, err := DistinctSpamNumbers()
	assert.Nil(t, err)
	assert.Equal(t, []string{"+14165550900", "+14165550901"}, phoneNumbers)
}
