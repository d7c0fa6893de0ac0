package models

import (
	"fmt"
	"net/url"
	"strings"

	sqlite "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// Initialize opens(or creates) the encrypted sqlite db file,
// and points the models package at it.
func Initialize(dbFilePath, passPhrase string) error {
	dsn := fmt.Sprintf(
		"file:%v?_pragma_key=%s&_pragma_cipher_page_size=4096",
		dbFilePath, url.QueryEscape(passPhrase),
	)

	return initialize(dsn)
}

// InitializeTestDb swaps the models db for a shared in-memory sqlite db,
// with all tables migrated & truncated. Only for use in tests.
func InitializeTestDb() {
	err := initialize("file::memory:?cache=shared")
	if err != nil {
		panic(err)
	}

	AutoMigrate()

	for _, table := range []string{"access_tokens", "spam_reports", "contacts", "users"} {
		db.Exec(fmt.Sprintf("DELETE FROM %v", table))
	}
}

func AutoMigrate() {
	db.AutoMigrate(&User{})
	db.AutoMigrate(&Contact{})
	db.AutoMigrate(&SpamReport{})
	db.AutoMigrate(&AccessToken{})
}

// IsUniqueConstraintError reports whether err came from the db engine
// rejecting a row that collides with a unique index.
func IsUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func initialize(dsn string) error {
	var err error

	db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return errors.Wrap(err, "unable to open sqlite database")
	}

	return nil
}
