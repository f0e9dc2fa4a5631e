package web

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/activitypub"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/httpsig"
	"github.com/mklatt/dorfplatz/util"
)

var documentContext = []string{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
}

// GetActorDocument renders a local actor as an ActivityPub Person
// document, including the public key remote servers verify our
// signatures against.
func GetActorDocument(database *db.DB, username string, conf *util.AppConfig) (error, string) {
	err, actor := database.ReadActorByUsername(username, conf.Conf.Domain)
	if err != nil || !actor.Local() {
		return fmt.Errorf("local actor %s not found", username), "{}"
	}

	displayName := actor.DisplayName
	if displayName == "" {
		displayName = actor.Username
	}

	doc := map[string]interface{}{
		"@context":                  documentContext,
		"id":                        actor.URI,
		"type":                      "Person",
		"preferredUsername":         actor.Username,
		"name":                      displayName,
		"summary":                   actor.Summary,
		"inbox":                     actor.InboxURI,
		"outbox":                    actor.OutboxURI,
		"followers":                 actor.FollowersURI,
		"following":                 actor.FollowingURI,
		"url":                       actor.URI,
		"manuallyApprovesFollowers": actor.ManuallyApproves,
		"discoverable":              true,
		"endpoints": map[string]interface{}{
			"sharedInbox": actor.SharedInboxURI,
		},
		"publicKey": httpsig.FormatPublicKeyForActor(actor.URI, actor.PublicKeyPem),
	}
	if actor.AvatarURL != "" {
		doc["icon"] = map[string]interface{}{"type": "Image", "url": actor.AvatarURL}
	}
	if actor.HeaderURL != "" {
		doc["image"] = map[string]interface{}{"type": "Image", "url": actor.HeaderURL}
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

// GetStatusObject renders a published status as an ActivityPub object.
// Only statuses addressed to the public collection are served; private
// and direct statuses stay unreadable without a signature check, so
// they 404 here.
func GetStatusObject(database *db.DB, statusId uuid.UUID) (error, string) {
	err, status := database.ReadStatusById(statusId)
	if err != nil {
		return err, "{}"
	}
	if status.PublishedAt == nil || status.Direct() ||
		!recipientsContain(status, domain.PublicCollection) {
		return fmt.Errorf("status %s is not publicly addressable", statusId), "{}"
	}

	err, author := database.ReadActorById(status.ActorId)
	if err != nil {
		return err, "{}"
	}

	object := activitypub.NoteObject(status, author)
	object["@context"] = documentContext[0]

	jsonBytes, err := json.Marshal(object)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

func recipientsContain(status *domain.Status, uri string) bool {
	for _, u := range status.RecipientTo {
		if u == uri {
			return true
		}
	}
	for _, u := range status.RecipientCc {
		if u == uri {
			return true
		}
	}
	return false
}

// GetFollowersCollection summarizes an actor's followers. Only the
// count is exposed; the member list stays private.
func GetFollowersCollection(database *db.DB, username string, conf *util.AppConfig) (error, string) {
	err, actor := database.ReadActorByUsername(username, conf.Conf.Domain)
	if err != nil || !actor.Local() {
		return fmt.Errorf("local actor %s not found", username), "{}"
	}
	return collectionSummary(actor.FollowersURI, actor.FollowerCount)
}

// GetFollowingCollection summarizes the actors an actor follows.
func GetFollowingCollection(database *db.DB, username string, conf *util.AppConfig) (error, string) {
	err, actor := database.ReadActorByUsername(username, conf.Conf.Domain)
	if err != nil || !actor.Local() {
		return fmt.Errorf("local actor %s not found", username), "{}"
	}
	return collectionSummary(actor.FollowingURI, actor.FollowingCount)
}

func collectionSummary(id string, total int64) (error, string) {
	collection := map[string]interface{}{
		"@context":   documentContext[0],
		"id":         id,
		"type":       "OrderedCollection",
		"totalItems": total,
	}
	jsonBytes, err := json.Marshal(collection)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}
