package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/util"
)

const rssFeedSize = 40

// GetRSS renders the public timeline as RSS. With a username it
// narrows to that actor's public posts.
func GetRSS(database *db.DB, conf *util.AppConfig, username string) (string, error) {
	link := fmt.Sprintf("https://%s/feed", conf.Conf.Domain)

	var entries []domain.TimelineEntry
	var title string
	var author string

	if username != "" {
		err, actor := database.ReadActorByUsername(username, conf.Conf.Domain)
		if err != nil || !actor.Local() {
			return "", errors.New("unknown local actor")
		}
		err, rows := database.ReadActorTimeline(actor.Id, uuid.Nil, false, rssFeedSize, "")
		if err != nil {
			log.Printf("RSS: Failed to read posts by %s: %v", username, err)
			return "", errors.New("error retrieving statuses")
		}
		entries = *rows
		title = fmt.Sprintf("%s - %s", util.Name, username)
		author = actor.Handle()
		link = fmt.Sprintf("%s?username=%s", link, username)
	} else {
		err, rows := database.ReadPublicTimeline(conf.Conf.Domain, uuid.Nil, rssFeedSize, "")
		if err != nil {
			log.Printf("RSS: Failed to read the public timeline: %v", err)
			return "", errors.New("error retrieving statuses")
		}
		entries = *rows
		title = fmt.Sprintf("%s - public timeline", util.Name)
		author = conf.Conf.Domain
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: fmt.Sprintf("public posts on %s", conf.Conf.Domain),
		Author:      &feeds.Author{Name: author},
		Created:     time.Now(),
	}

	for i := range entries {
		feed.Items = append(feed.Items, rssItem(database, conf, &entries[i].Status))
	}
	return feed.ToRss()
}

// GetRSSItem renders a single public status as a one-item feed.
func GetRSSItem(database *db.DB, conf *util.AppConfig, id uuid.UUID) (string, error) {
	err, status := database.ReadStatusById(id)
	if err != nil || status.PublishedAt == nil || status.Direct() {
		return "", errors.New("error retrieving status by id")
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - status", util.Name),
		Link:        &feeds.Link{Href: fmt.Sprintf("https://%s/feed/%s", conf.Conf.Domain, status.Id)},
		Description: fmt.Sprintf("a post on %s", conf.Conf.Domain),
		Created:     time.Now(),
	}
	feed.Items = append(feed.Items, rssItem(database, conf, status))
	return feed.ToRss()
}

func rssItem(database *db.DB, conf *util.AppConfig, status *domain.Status) *feeds.Item {
	authorName := "unknown"
	if err, author := database.ReadActorById(status.ActorId); err == nil {
		authorName = author.Handle()
	}
	created := status.CreatedAt
	if status.PublishedAt != nil {
		created = *status.PublishedAt
	}
	return &feeds.Item{
		Id:      status.Id.String(),
		Title:   created.Format(util.DateTimeFormat()),
		Link:    &feeds.Link{Href: fmt.Sprintf("https://%s/feed/%s", conf.Conf.Domain, status.Id)},
		Content: status.Content,
		Author:  &feeds.Author{Name: authorName},
		Created: created,
	}
}
