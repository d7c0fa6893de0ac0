package server

import (
	"fmt"
	"math/rand"

	"github.com/teniola/calldex/server/models"
)

const (
	defaultSampleUsers     = 50
	defaultContactsPerUser = 20
	defaultSampleReports   = 100
)

var (
	sampleFirstNames = []string{
		"aarav", "amara", "bisi", "chioma", "dayo", "emeka", "femi", "ifeoma",
		"kunle", "lola", "ngozi", "obi", "priya", "rohan", "sade", "tunde",
		"uche", "yemi", "zara", "zuri",
	}
	sampleLastNames = []string{
		"Adeyemi", "Balogun", "Chukwu", "Dlamini", "Eze", "Gupta", "Ibrahim",
		"Khan", "Mehta", "Nwosu", "Okafor", "Patel", "Sharma", "Verma",
	}
)

// populateSampleData fills the db with fake users, contacts & spam
// reports for local development. Rows that collide with existing
// data are skipped, so re-running it is harmless.
func populateSampleData(userCount, contactsPerUser, reportCount int) error {
	users := []*models.User{}
	phoneNumbers := map[string]bool{}

	for i := 0; i < userCount; i++ {
		phoneNumber := randomPhoneNumber(phoneNumbers)
		user := models.User{
			Username:    fmt.Sprintf("%v.%v%v", randomItem(sampleFirstNames), i, rand.Intn(100)),
			PhoneNumber: phoneNumber,
			Email:       fmt.Sprintf("%v%v@example.com", randomItem(sampleFirstNames), i),
			Password:    "password123",
		}

		err := models.CreateUser(&user)
		if models.IsUniqueConstraintError(err) {
			continue
		}
		if err != nil {
			return err
		}

		users = append(users, &user)
	}

	for _, user := range users {
		for i := 0; i < contactsPerUser; i++ {
			contact := models.Contact{
				Name:        fmt.Sprintf("%v %v", randomItem(sampleFirstNames), randomItem(sampleLastNames)),
				PhoneNumber: randomPhoneNumber(phoneNumbers),
			}

			err := user.AddContact(&contact)
			if err != nil && !models.IsUniqueConstraintError(err) {
				return err
			}
		}
	}

	allNumbers := []string{}
	for phoneNumber := range phoneNumbers {
		allNumbers = append(allNumbers, phoneNumber)
	}

	for i := 0; i < reportCount && len(users) > 0; i++ {
		reporter := users[rand.Intn(len(users))]
		_, err := models.CreateSpamReport(reporter.ID, randomItem(allNumbers))
		if err != nil && !models.IsUniqueConstraintError(err) {
			return err
		}
	}

	logg.Infof("sample data populated: %v users, ~%v contacts, ~%v spam reports",
		len(users), len(users)*contactsPerUser, reportCount)

	return nil
}

// randomPhoneNumber returns an e164 number not seen before in this run.
func randomPhoneNumber(seen map[string]bool) string {
	for {
		phoneNumber := fmt.Sprintf("+234%010d", rand.Int63n(10000000000))
		if !seen[phoneNumber] {
			seen[phoneNumber] = true
			return phoneNumber
		}
	}
}

func randomItem(items []string) string {
	return items[rand.Intn(len(items))]
}
