package social

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/activitypub"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/gates"
	"github.com/mklatt/dorfplatz/util"
)

// CreateFollow makes a local actor follow a target. A local target
// accepts immediately; a remote target leaves the edge pending until
// its Accept arrives through the inbox. Repeating the call for an
// existing pair returns the existing edge.
func CreateFollow(database *db.DB, prov gates.Provider, conf *util.AppConfig, actorId, targetActorId uuid.UUID) (*domain.Follow, error) {
	if actorId == targetActorId {
		return nil, fmt.Errorf("an actor cannot follow itself")
	}

	err, actor := database.ReadActorById(actorId)
	if err != nil {
		return nil, fmt.Errorf("actor not found: %w", err)
	}
	if !actor.Local() {
		return nil, fmt.Errorf("follower %s is not a local actor", actor.Handle())
	}
	err, target := database.ReadActorById(targetActorId)
	if err != nil {
		return nil, fmt.Errorf("target actor not found: %w", err)
	}

	if decision := gates.CanFollow(prov.EligibilityFor(actorId)); !decision.Allowed {
		return nil, &GateRejection{Capability: "follow", Reason: decision.Reason}
	}
	if !target.Local() {
		if !conf.Conf.WithFed {
			return nil, fmt.Errorf("federation is disabled")
		}
		if decision := gates.CanFederate(prov.EligibilityFor(actorId)); !decision.Allowed {
			return nil, &GateRejection{Capability: "federate", Reason: decision.Reason}
		}
	}

	if err, existing := database.ReadFollowByPair(actorId, targetActorId); err == nil {
		return existing, nil
	}

	now := time.Now().UTC()
	follow := &domain.Follow{
		Id:            uuid.New(),
		ActorId:       actorId,
		TargetActorId: targetActorId,
		Status:        domain.FollowPending,
		CreatedAt:     now,
	}
	follow.URI = fmt.Sprintf("https://%s/follows/%s", conf.Conf.Domain, follow.Id)

	if err := database.CreateFollow(follow); err != nil {
		return nil, fmt.Errorf("failed to create follow: %w", err)
	}

	if target.Local() {
		if err := database.AcceptFollow(follow.Id, now); err != nil {
			return nil, err
		}
		if err := database.AdjustFollowCounters(actorId, targetActorId, 1); err != nil {
			return nil, err
		}
		follow.Status = domain.FollowAccepted
		follow.AcceptedAt = &now
		return follow, nil
	}

	go func() {
		if err := activitypub.SendFollow(actor, target, follow.URI); err != nil {
			log.Printf("Follows: Failed to send Follow to %s: %v", target.Handle(), err)
		}
	}()
	return follow, nil
}

// RemoveFollow unfollows. Counters move only if the edge was accepted;
// a remote target gets an Undo. Removing an edge that does not exist
// succeeds without doing anything.
func RemoveFollow(database *db.DB, conf *util.AppConfig, actorId, targetActorId uuid.UUID) error {
	err, follow := database.ReadFollowByPair(actorId, targetActorId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read follow: %w", err)
	}

	if follow.Accepted() {
		if err := database.AdjustFollowCounters(actorId, targetActorId, -1); err != nil {
			return err
		}
	}
	if err := database.DeleteFollow(follow.Id); err != nil {
		return err
	}

	err, target := database.ReadActorById(targetActorId)
	if err == nil && !target.Local() && conf.Conf.WithFed {
		err, actor := database.ReadActorById(actorId)
		if err == nil {
			go func() {
				if err := activitypub.SendUndoFollow(actor, target, follow.URI, conf); err != nil {
					log.Printf("Follows: Failed to send Undo to %s: %v", target.Handle(), err)
				}
			}()
		}
	}
	return nil
}

// IsFollowing reports whether actorId has an accepted follow edge to
// targetActorId. Pending edges count as not following.
func IsFollowing(database *db.DB, actorId, targetActorId uuid.UUID) (bool, error) {
	return database.HasAcceptedFollow(actorId, targetActorId)
}

// Relationship is the follow state between a viewer and a target, seen
// from the viewer's side.
type Relationship struct {
	IsFollowing  bool
	IsFollowedBy bool
}

// FollowRelationship resolves both directions of the follow state
// between a viewer and a target. An anonymous viewer (zero id) has no
// relationship to anyone.
func FollowRelationship(database *db.DB, viewerId, targetId uuid.UUID) (Relationship, error) {
	if viewerId == uuid.Nil {
		return Relationship{}, nil
	}
	following, err := database.HasAcceptedFollow(viewerId, targetId)
	if err != nil {
		return Relationship{}, err
	}
	followedBy, err := database.HasAcceptedFollow(targetId, viewerId)
	if err != nil {
		return Relationship{}, err
	}
	return Relationship{IsFollowing: following, IsFollowedBy: followedBy}, nil
}

// Followers returns a page of an actor's accepted followers.
func Followers(database *db.DB, actorId uuid.UUID, limit int, cursor string) (domain.Page[domain.Follow], error) {
	limit = clampLimit(limit)
	err, rows := database.ReadFollowersPage(actorId, limit+1, cursor)
	if err != nil {
		return domain.Page[domain.Follow]{}, err
	}
	return domain.MakePage(*rows, limit, followId), nil
}

// Following returns a page of the actors an actor follows.
func Following(database *db.DB, actorId uuid.UUID, limit int, cursor string) (domain.Page[domain.Follow], error) {
	limit = clampLimit(limit)
	err, rows := database.ReadFollowingPage(actorId, limit+1, cursor)
	if err != nil {
		return domain.Page[domain.Follow]{}, err
	}
	return domain.MakePage(*rows, limit, followId), nil
}

func followId(f domain.Follow) string {
	return f.Id.String()
}
