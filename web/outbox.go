package web

import (
	"encoding/json"
	"fmt"

	"github.com/mklatt/dorfplatz/activitypub"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/util"
)

const outboxPageSize = 20

// GetOutbox renders a local actor's outbox. Without a cursor it
// returns the collection header; with one it returns a page of Create
// activities wrapping the actor's public posts.
func GetOutbox(database *db.DB, username string, cursor string, paged bool, conf *util.AppConfig) (error, string) {
	err, actor := database.ReadActorByUsername(username, conf.Conf.Domain)
	if err != nil || !actor.Local() {
		return fmt.Errorf("local actor %s not found", username), "{}"
	}

	if !paged {
		collection := map[string]interface{}{
			"@context":   documentContext[0],
			"id":         actor.OutboxURI,
			"type":       "OrderedCollection",
			"totalItems": actor.StatusCount,
			"first":      actor.OutboxURI + "?page=true",
		}
		jsonBytes, err := json.Marshal(collection)
		if err != nil {
			return err, "{}"
		}
		return nil, string(jsonBytes)
	}

	err, rows := database.ReadActorTimeline(actor.Id, actor.Id, true, outboxPageSize+1, cursor)
	if err != nil {
		return err, "{}"
	}

	entries := *rows
	hasMore := len(entries) > outboxPageSize
	if hasMore {
		entries = entries[:outboxPageSize]
	}

	items := make([]interface{}, 0, len(entries))
	for i := range entries {
		status := &entries[i].Status
		items = append(items, map[string]interface{}{
			"id":     fmt.Sprintf("%s/activity", status.URI),
			"type":   "Create",
			"actor":  actor.URI,
			"to":     status.RecipientTo,
			"cc":     status.RecipientCc,
			"object": activitypub.NoteObject(status, actor),
		})
	}

	pageId := actor.OutboxURI + "?page=true"
	if cursor != "" {
		pageId = fmt.Sprintf("%s&cursor=%s", pageId, cursor)
	}
	page := map[string]interface{}{
		"@context":     documentContext[0],
		"id":           pageId,
		"type":         "OrderedCollectionPage",
		"partOf":       actor.OutboxURI,
		"orderedItems": items,
	}
	if hasMore {
		page["next"] = fmt.Sprintf("%s?page=true&cursor=%s",
			actor.OutboxURI, entries[len(entries)-1].Id)
	}

	jsonBytes, err := json.Marshal(page)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}
