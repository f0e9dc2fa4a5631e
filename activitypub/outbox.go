package activitypub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/httpsig"
	"github.com/mklatt/dorfplatz/util"
)

const activityContext = "https://www.w3.org/ns/activitystreams"

var deliveryClient = &http.Client{Timeout: 30 * time.Second}

// SendActivity posts an activity to a remote inbox, signed with the
// sender's key.
func SendActivity(activity interface{}, inboxURI string, sender *domain.Actor) error {
	activityJSON, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	return postSigned(activityJSON, inboxURI, sender)
}

func postSigned(activityJSON []byte, inboxURI string, sender *domain.Actor) error {
	req, err := http.NewRequest("POST", inboxURI, bytes.NewReader(activityJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", util.UserAgent())
	req.Header.Set("Accept", httpsig.AcceptActivityJSON)
	req.Host = req.URL.Host

	if err := httpsig.SignRequest(req, sender, activityJSON); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := deliveryClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	return nil
}

// SendAccept sends an Accept for a received Follow. It runs on the
// caller's goroutine and is expected to be fired asynchronously: a
// failure is the remote server's problem, not the inbox handler's.
func SendAccept(sender *domain.Actor, remote *domain.Actor, followURI string, conf *util.AppConfig) error {
	acceptID := fmt.Sprintf("https://%s/activities/%s", conf.Conf.Domain, uuid.NewString())

	accept := map[string]interface{}{
		"@context": activityContext,
		"id":       acceptID,
		"type":     "Accept",
		"actor":    sender.URI,
		"object": map[string]interface{}{
			"id":     followURI,
			"type":   "Follow",
			"actor":  remote.URI,
			"object": sender.URI,
		},
	}

	return SendActivity(accept, remote.InboxURI, sender)
}

// SendFollow sends a Follow activity for an already-stored pending
// follow edge.
func SendFollow(sender *domain.Actor, remote *domain.Actor, followURI string) error {
	follow := map[string]interface{}{
		"@context": activityContext,
		"id":       followURI,
		"type":     "Follow",
		"actor":    sender.URI,
		"object":   remote.URI,
	}
	return SendActivity(follow, remote.InboxURI, sender)
}

// SendUndoFollow retracts a previously sent Follow.
func SendUndoFollow(sender *domain.Actor, remote *domain.Actor, followURI string, conf *util.AppConfig) error {
	undoID := fmt.Sprintf("https://%s/activities/%s", conf.Conf.Domain, uuid.NewString())

	undo := map[string]interface{}{
		"@context": activityContext,
		"id":       undoID,
		"type":     "Undo",
		"actor":    sender.URI,
		"object": map[string]interface{}{
			"id":     followURI,
			"type":   "Follow",
			"actor":  sender.URI,
			"object": remote.URI,
		},
	}
	return SendActivity(undo, remote.InboxURI, sender)
}

// NoteObject is the object payload of a Create for a status.
func NoteObject(status *domain.Status, sender *domain.Actor) map[string]interface{} {
	object := map[string]interface{}{
		"id":           status.URI,
		"type":         status.ObjectType,
		"attributedTo": sender.URI,
		"content":      status.Content,
		"to":           status.RecipientTo,
		"cc":           status.RecipientCc,
	}
	if status.PublishedAt != nil {
		object["published"] = status.PublishedAt.UTC().Format(time.RFC3339)
	}
	if status.ContentWarning != "" {
		object["summary"] = status.ContentWarning
		object["sensitive"] = true
	}
	if status.InReplyToURI != "" {
		object["inReplyTo"] = status.InReplyToURI
	}
	return object
}

// SendCreate queues delivery of a Create activity for a published
// status. Fan-out resolves the status' recipient lists to concrete
// inboxes: the sender's followers collection expands to each accepted
// follower, preferring shared inboxes, and explicit actor URIs resolve
// to their own inbox. The public collection itself is not a deliverable
// target.
func SendCreate(database *db.DB, status *domain.Status, sender *domain.Actor, conf *util.AppConfig) error {
	createID := fmt.Sprintf("https://%s/activities/%s", conf.Conf.Domain, uuid.NewString())

	create := map[string]interface{}{
		"@context": activityContext,
		"id":       createID,
		"type":     "Create",
		"actor":    sender.URI,
		"to":       status.RecipientTo,
		"cc":       status.RecipientCc,
		"object":   NoteObject(status, sender),
	}
	if status.PublishedAt != nil {
		create["published"] = status.PublishedAt.UTC().Format(time.RFC3339)
	}

	inboxes := map[string]bool{}
	for _, uri := range append(append([]string{}, status.RecipientTo...), status.RecipientCc...) {
		switch uri {
		case domain.PublicCollection:
			// Reaches remote servers through follower delivery.
		case sender.FollowersURI:
			if err := collectFollowerInboxes(database, sender, inboxes); err != nil {
				log.Printf("Outbox: Failed to expand followers of %s: %v", sender.Handle(), err)
			}
		default:
			err, recipient := database.ReadActorByURI(uri)
			if err != nil || recipient.Local() {
				continue
			}
			inboxes[preferredInbox(recipient)] = true
		}
	}

	if len(inboxes) == 0 {
		return nil
	}

	activityJSON := mustMarshal(create)
	now := time.Now().UTC()
	for inbox := range inboxes {
		item := &domain.DeliveryItem{
			Id:           uuid.New(),
			InboxURI:     inbox,
			ActivityJSON: activityJSON,
			NextRetryAt:  now,
			CreatedAt:    now,
		}
		if err := database.EnqueueDelivery(item); err != nil {
			log.Printf("Outbox: Failed to queue delivery to %s: %v", inbox, err)
		}
	}

	log.Printf("Outbox: Queued Create for status %s to %d inboxes", status.Id, len(inboxes))
	return nil
}

func collectFollowerInboxes(database *db.DB, sender *domain.Actor, inboxes map[string]bool) error {
	cursor := ""
	for {
		err, page := database.ReadFollowersPage(sender.Id, 100, cursor)
		if err != nil {
			return err
		}
		if len(*page) == 0 {
			return nil
		}
		for _, follow := range *page {
			err, follower := database.ReadActorById(follow.ActorId)
			if err != nil || follower.Local() {
				continue
			}
			inboxes[preferredInbox(follower)] = true
		}
		cursor = (*page)[len(*page)-1].Id.String()
		if len(*page) < 100 {
			return nil
		}
	}
}

func preferredInbox(actor *domain.Actor) string {
	if actor.SharedInboxURI != "" {
		return actor.SharedInboxURI
	}
	return actor.InboxURI
}

// mustMarshal marshals v to JSON, panicking on error
func mustMarshal(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal: %v", err))
	}
	return string(b)
}
