package models

import "time"

// SchedulerLock is a lease held by one instance while it runs a cron job
type SchedulerLock struct {
	ID         string    `bson:"_id"`
	InstanceID string    `bson:"instanceId"`
	ExpiresAt  time.Time `bson:"expiresAt"`
	AcquiredAt time.Time `bson:"acquiredAt"`
}
