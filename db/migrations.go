package db

import (
	"database/sql"
	"log"
)

const (
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		inbox_uri TEXT NOT NULL DEFAULT '',
		outbox_uri TEXT NOT NULL DEFAULT '',
		followers_uri TEXT NOT NULL DEFAULT '',
		following_uri TEXT NOT NULL DEFAULT '',
		shared_inbox_uri TEXT NOT NULL DEFAULT '',
		public_key_pem TEXT NOT NULL DEFAULT '',
		private_key_pem TEXT NOT NULL DEFAULT '',
		follower_count INTEGER NOT NULL DEFAULT 0,
		following_count INTEGER NOT NULL DEFAULT 0,
		status_count INTEGER NOT NULL DEFAULT 0,
		avatar_url TEXT NOT NULL DEFAULT '',
		header_url TEXT NOT NULL DEFAULT '',
		manually_approves INTEGER NOT NULL DEFAULT 0,
		refreshed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateActorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_actors_uri ON actors(uri);
		CREATE INDEX IF NOT EXISTS idx_actors_domain ON actors(domain);
	`

	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		target_actor_id TEXT NOT NULL,
		uri TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		accepted_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_id, target_actor_id)
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_actor_id ON follows(actor_id);
		CREATE INDEX IF NOT EXISTS idx_follows_target_actor_id ON follows(target_actor_id);
		CREATE INDEX IF NOT EXISTS idx_follows_uri ON follows(uri);
	`

	sqlCreateStatusesTable = `CREATE TABLE IF NOT EXISTS statuses (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		uri TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_warning TEXT NOT NULL DEFAULT '',
		object_type TEXT NOT NULL DEFAULT 'Note',
		published_at TIMESTAMP,
		in_reply_to_id TEXT,
		in_reply_to_uri TEXT NOT NULL DEFAULT '',
		like_count INTEGER NOT NULL DEFAULT 0,
		reply_count INTEGER NOT NULL DEFAULT 0,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateStatusesIndices = `
		CREATE INDEX IF NOT EXISTS idx_statuses_actor_id ON statuses(actor_id);
		CREATE INDEX IF NOT EXISTS idx_statuses_created_at ON statuses(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_statuses_uri ON statuses(uri);
		CREATE INDEX IF NOT EXISTS idx_statuses_in_reply_to_id ON statuses(in_reply_to_id);
	`

	// Recipient lists live in their own table so visibility predicates
	// are exact string matches in SQL, not substring probes on JSON.
	sqlCreateStatusRecipientsTable = `CREATE TABLE IF NOT EXISTS status_recipients (
		status_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		uri TEXT NOT NULL,
		UNIQUE(status_id, kind, uri)
	)`

	sqlCreateStatusRecipientsIndices = `
		CREATE INDEX IF NOT EXISTS idx_status_recipients_status_id ON status_recipients(status_id);
		CREATE INDEX IF NOT EXISTS idx_status_recipients_uri ON status_recipients(uri);
	`

	sqlCreateAttachmentsTable = `CREATE TABLE IF NOT EXISTS attachments (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'image',
		media_type TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateAttachmentsIndices = `
		CREATE INDEX IF NOT EXISTS idx_attachments_status_id ON attachments(status_id);
	`

	sqlCreateStatusTagsTable = `CREATE TABLE IF NOT EXISTS status_tags (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'Mention',
		target_uri TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT ''
	)`

	sqlCreateStatusTagsIndices = `
		CREATE INDEX IF NOT EXISTS idx_status_tags_status_id ON status_tags(status_id);
		CREATE INDEX IF NOT EXISTS idx_status_tags_target_uri ON status_tags(target_uri);
	`

	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		status_id TEXT NOT NULL,
		uri TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_id, status_id)
	)`

	sqlCreateLikesIndices = `
		CREATE INDEX IF NOT EXISTS idx_likes_status_id ON likes(status_id);
		CREATE INDEX IF NOT EXISTS idx_likes_actor_id ON likes(actor_id);
	`

	// Activities log table (for deduplication & debugging)
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL DEFAULT '',
		object_uri TEXT NOT NULL DEFAULT '',
		raw_json TEXT NOT NULL DEFAULT '',
		processed INTEGER NOT NULL DEFAULT 0,
		local INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type);
	`

	sqlCreateDeliveryQueueTable = `CREATE TABLE IF NOT EXISTS delivery_queue (
		id TEXT NOT NULL PRIMARY KEY,
		inbox_uri TEXT NOT NULL,
		activity_json TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateDeliveryQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_next_retry ON delivery_queue(next_retry_at);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		tables := []struct {
			name    string
			create  string
			indices string
		}{
			{"actors", sqlCreateActorsTable, sqlCreateActorsIndices},
			{"follows", sqlCreateFollowsTable, sqlCreateFollowsIndices},
			{"statuses", sqlCreateStatusesTable, sqlCreateStatusesIndices},
			{"status_recipients", sqlCreateStatusRecipientsTable, sqlCreateStatusRecipientsIndices},
			{"attachments", sqlCreateAttachmentsTable, sqlCreateAttachmentsIndices},
			{"status_tags", sqlCreateStatusTagsTable, sqlCreateStatusTagsIndices},
			{"likes", sqlCreateLikesTable, sqlCreateLikesIndices},
			{"activities", sqlCreateActivitiesTable, sqlCreateActivitiesIndices},
			{"delivery_queue", sqlCreateDeliveryQueueTable, sqlCreateDeliveryQueueIndices},
		}

		for _, table := range tables {
			if _, err := tx.Exec(table.create); err != nil {
				log.Printf("Error creating table %s: %v", table.name, err)
				return err
			}
			if _, err := tx.Exec(table.indices); err != nil {
				log.Printf("Warning: Failed to create %s indices: %v", table.name, err)
			}
		}

		return nil
	})
}
