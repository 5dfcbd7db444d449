package indices

import (
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartCron schedules the full sync on spec, a cron expression with a leading seconds field.
func StartCron(spec string) (*cron.Cron, error) {
	crontab := cron.New(cron.WithSeconds())
	if _, err := crontab.AddFunc(spec, scheduledSync); err != nil {
		return nil, err
	}
	crontab.Start()
	logrus.Infof("indices full sync scheduled on '%s'", spec)
	return crontab, nil
}

func scheduledSync() {
	started, err := ScheduleNewSyncRunFunc(robotSession())
	if err != nil {
		logrus.Errorf("scheduled indices full sync: %v", err)
		return
	}
	if !started {
		logrus.Infof("scheduled indices full sync skipped, a run is in progress")
	}
}
