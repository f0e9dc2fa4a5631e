package activitypub

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/util"
)

const (
	deliveryBatchSize   = 50
	deliveryMaxAttempts = 10
)

// backoffMinutes is the retry schedule; attempts beyond the table reuse
// the last entry.
var backoffMinutes = []int{1, 5, 15, 60, 240, 1440}

// StartDeliveryWorker starts the background worker that drains the
// delivery queue.
func StartDeliveryWorker(database *db.DB, conf *util.AppConfig) {
	log.Println("Starting delivery worker...")

	ticker := time.NewTicker(10 * time.Second)
	go func() {
		for range ticker.C {
			ProcessDeliveryQueue(database, conf)
		}
	}()
}

// ProcessDeliveryQueue attempts every due delivery once, rescheduling
// failures with exponential backoff and dropping items after the
// attempt limit.
func ProcessDeliveryQueue(database *db.DB, conf *util.AppConfig) {
	err, items := database.ReadDueDeliveries(time.Now().UTC(), deliveryBatchSize)
	if err != nil {
		log.Printf("DeliveryWorker: Failed to read queue: %v", err)
		return
	}
	if len(*items) == 0 {
		return
	}

	log.Printf("DeliveryWorker: Processing %d pending deliveries", len(*items))

	for _, item := range *items {
		if err := deliverItem(database, item.ActivityJSON, item.InboxURI); err != nil {
			attempts := item.Attempts + 1
			if attempts >= deliveryMaxAttempts {
				log.Printf("DeliveryWorker: Giving up on delivery to %s after %d attempts",
					item.InboxURI, attempts)
				database.DeleteDelivery(item.Id)
				continue
			}
			backoff := backoffMinutes[min(attempts-1, len(backoffMinutes)-1)]
			log.Printf("DeliveryWorker: Delivery to %s failed (attempt %d), retry in %dm: %v",
				item.InboxURI, attempts, backoff, err)
			database.RescheduleDelivery(item.Id, time.Now().UTC().Add(time.Duration(backoff)*time.Minute))
		} else {
			log.Printf("DeliveryWorker: Delivered to %s", item.InboxURI)
			database.DeleteDelivery(item.Id)
		}
	}
}

// deliverItem signs and posts one queued activity. The sender is
// recovered from the activity's actor field, which is always a local
// actor URI for queued items.
func deliverItem(database *db.DB, activityJSON string, inboxURI string) error {
	var activity struct {
		Actor string `json:"actor"`
	}
	if err := json.Unmarshal([]byte(activityJSON), &activity); err != nil {
		return fmt.Errorf("failed to parse activity JSON: %w", err)
	}
	if activity.Actor == "" {
		return fmt.Errorf("activity missing actor field")
	}

	err, sender := database.ReadActorByURI(activity.Actor)
	if err != nil {
		return fmt.Errorf("failed to load sender %s: %w", activity.Actor, err)
	}
	if !sender.Local() {
		return fmt.Errorf("sender %s is not a local actor", activity.Actor)
	}

	return postSigned([]byte(activityJSON), inboxURI, sender)
}
