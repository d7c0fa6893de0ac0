package cron

import (
	"time"

	"github.com/go-co-op/gocron"
)

// NewScheduler creates a scheduler in the config provided time zone,
// falling back to UTC when the zone can't be loaded.
func NewScheduler(timeZoneName string) *gocron.Scheduler {
	timeZone, err := time.LoadLocation(timeZoneName)
	if err != nil {
		timeZone = time.UTC
	}

	scheduler := gocron.NewScheduler(timeZone)
	scheduler.TagsUnique()

	return scheduler
}
