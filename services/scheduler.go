// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartTrialSweep runs an hourly job that downgrades reward trials whose
// period has ended. Lunary treats subscription status as authoritative for
// feature access, so stale "trial" rows would keep Pro features open forever.
func (s *SubscriptionService) StartTrialSweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			expired, err := s.ExpireLapsedTrials()
			if err != nil {
				log.Printf("[Sweep] DB error expiring trials: %v", err)
				return
			}
			if expired > 0 {
				log.Printf("✅ Expired %d lapsed reward trial(s)", expired)
			}
		}),
	)
}
