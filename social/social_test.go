package social

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/gates"
	"github.com/mklatt/dorfplatz/util"
)

func testDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func testConf() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.Host = "127.0.0.1"
	conf.Conf.HttpPort = 8080
	conf.Conf.Domain = "example.com"
	conf.Conf.WithFed = false
	return conf
}

func makeLocal(t *testing.T, database *db.DB, username string) *domain.Actor {
	t.Helper()
	actor, err := CreateLocalActor(database, gates.AllowAll{}, testConf(), CreateLocalActorInput{
		Id:       uuid.New(),
		Username: username,
	})
	if err != nil {
		t.Fatalf("CreateLocalActor failed: %v", err)
	}
	return actor
}

func TestCreateLocalActor(t *testing.T) {
	database := testDB(t)
	actor := makeLocal(t, database, "alice")

	if actor.URI != "https://example.com/users/alice" {
		t.Errorf("Unexpected actor URI: %s", actor.URI)
	}
	if actor.InboxURI != actor.URI+"/inbox" || actor.FollowersURI != actor.URI+"/followers" {
		t.Error("Protocol URIs should derive from the actor URI")
	}
	if !actor.Local() {
		t.Error("Created actor should hold a private key")
	}
	if actor.PublicKeyPem == "" || !strings.Contains(actor.PublicKeyPem, "PUBLIC KEY") {
		t.Error("Created actor should hold a PEM public key")
	}
}

func TestCreateLocalActorValidatesUsername(t *testing.T) {
	database := testDB(t)
	for _, username := range []string{"", "Alice", "al ice", "al@ice", strings.Repeat("a", 31)} {
		_, err := CreateLocalActor(database, gates.AllowAll{}, testConf(), CreateLocalActorInput{
			Id: uuid.New(), Username: username,
		})
		if err == nil {
			t.Errorf("Expected rejection for username %q", username)
		}
	}
}

func TestCreateLocalActorGated(t *testing.T) {
	database := testDB(t)
	id := uuid.New()
	prov := gates.Static{}

	_, err := CreateLocalActor(database, prov, testConf(), CreateLocalActorInput{
		Id: id, Username: "alice",
	})
	var rejection *GateRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("Expected GateRejection, got %v", err)
	}
	if rejection.Reason != gates.ReasonNoRecord {
		t.Errorf("Unexpected reason: %s", rejection.Reason)
	}
}

func TestCreateLocalActorDuplicateUsername(t *testing.T) {
	database := testDB(t)
	makeLocal(t, database, "alice")
	_, err := CreateLocalActor(database, gates.AllowAll{}, testConf(), CreateLocalActorInput{
		Id: uuid.New(), Username: "alice",
	})
	if err == nil {
		t.Error("Expected error for duplicate username")
	}
}

func TestCreateFollowLocalAcceptsImmediately(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	follow, err := CreateFollow(database, gates.AllowAll{}, testConf(), alice.Id, carol.Id)
	if err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}
	if !follow.Accepted() {
		t.Error("Follows between local actors accept immediately")
	}
	if follow.URI != "https://example.com/follows/"+follow.Id.String() {
		t.Errorf("Unexpected follow URI: %s", follow.URI)
	}

	_, gotAlice := database.ReadActorById(alice.Id)
	_, gotCarol := database.ReadActorById(carol.Id)
	if gotAlice.FollowingCount != 1 || gotCarol.FollowerCount != 1 {
		t.Error("Accepted local follow should move both counters")
	}

	// Repeating the call returns the existing edge without recounting.
	again, err := CreateFollow(database, gates.AllowAll{}, testConf(), alice.Id, carol.Id)
	if err != nil {
		t.Fatalf("Repeat CreateFollow failed: %v", err)
	}
	if again.Id != follow.Id {
		t.Error("Repeat follow should return the existing edge")
	}
	_, gotAlice = database.ReadActorById(alice.Id)
	if gotAlice.FollowingCount != 1 {
		t.Errorf("Following count = %d after repeat, want 1", gotAlice.FollowingCount)
	}
}

func TestCreateFollowRemotePendingAndFederationGate(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	bob := &domain.Actor{
		Id: uuid.New(), URI: "https://remote.example/users/bob",
		Username: "bob", Domain: "remote.example",
		InboxURI:  "https://remote.example/users/bob/inbox",
		CreatedAt: time.Now().UTC(),
	}
	if err := database.CreateActor(bob); err != nil {
		t.Fatalf("CreateActor failed: %v", err)
	}

	// Federation disabled: remote follows are refused outright.
	if _, err := CreateFollow(database, gates.AllowAll{}, testConf(), alice.Id, bob.Id); err == nil {
		t.Error("Remote follow should fail with federation disabled")
	}

	conf := testConf()
	conf.Conf.WithFed = true
	follow, err := CreateFollow(database, gates.AllowAll{}, conf, alice.Id, bob.Id)
	if err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}
	if follow.Accepted() {
		t.Error("Remote follows stay pending until the Accept arrives")
	}
	_, gotAlice := database.ReadActorById(alice.Id)
	if gotAlice.FollowingCount != 0 {
		t.Error("Pending follow must not move counters")
	}
}

func TestCreateFollowSelfRejected(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	if _, err := CreateFollow(database, gates.AllowAll{}, testConf(), alice.Id, alice.Id); err == nil {
		t.Error("Self-follow should be rejected")
	}
}

func TestCreateFollowGated(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	prov := gates.Static{
		alice.Id: {SocialEnabled: false},
		carol.Id: {SocialEnabled: true},
	}
	_, err := CreateFollow(database, prov, testConf(), alice.Id, carol.Id)
	var rejection *GateRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("Expected GateRejection, got %v", err)
	}
	if rejection.Capability != "follow" {
		t.Errorf("Unexpected capability: %s", rejection.Capability)
	}
}

func TestRemoveFollow(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	if _, err := CreateFollow(database, gates.AllowAll{}, testConf(), alice.Id, carol.Id); err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}
	if err := RemoveFollow(database, testConf(), alice.Id, carol.Id); err != nil {
		t.Fatalf("RemoveFollow failed: %v", err)
	}

	_, gotAlice := database.ReadActorById(alice.Id)
	_, gotCarol := database.ReadActorById(carol.Id)
	if gotAlice.FollowingCount != 0 || gotCarol.FollowerCount != 0 {
		t.Error("Unfollow should return counters to zero")
	}
	// Removing an edge that no longer exists is a no-op, and the
	// counters stay where they are.
	if err := RemoveFollow(database, testConf(), alice.Id, carol.Id); err != nil {
		t.Errorf("Removing an absent follow should succeed, got %v", err)
	}
	_, gotAlice = database.ReadActorById(alice.Id)
	_, gotCarol = database.ReadActorById(carol.Id)
	if gotAlice.FollowingCount != 0 || gotCarol.FollowerCount != 0 {
		t.Error("A no-op unfollow must not move counters")
	}
}

func TestIsFollowing(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	if following, err := IsFollowing(database, alice.Id, carol.Id); err != nil || following {
		t.Errorf("No edge yet: want false, got %v (err=%v)", following, err)
	}

	if _, err := CreateFollow(database, gates.AllowAll{}, testConf(), alice.Id, carol.Id); err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}
	if following, err := IsFollowing(database, alice.Id, carol.Id); err != nil || !following {
		t.Errorf("Accepted edge: want true, got %v (err=%v)", following, err)
	}
	// The edge is directed.
	if following, err := IsFollowing(database, carol.Id, alice.Id); err != nil || following {
		t.Errorf("Reverse direction: want false, got %v (err=%v)", following, err)
	}
}

func TestIsFollowingIgnoresPendingEdge(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")

	now := time.Now().UTC()
	remoteId := uuid.New()
	remote := &domain.Actor{
		Id:        remoteId,
		URI:       "https://remote.example/users/bob",
		Username:  "bob",
		Domain:    "remote.example",
		InboxURI:  "https://remote.example/users/bob/inbox",
		CreatedAt: now,
	}
	if err := database.CreateActor(remote); err != nil {
		t.Fatalf("CreateActor failed: %v", err)
	}
	pending := &domain.Follow{
		Id: uuid.New(), ActorId: alice.Id, TargetActorId: remoteId,
		URI:    "https://example.com/follows/" + uuid.NewString(),
		Status: domain.FollowPending, CreatedAt: now,
	}
	if err := database.CreateFollow(pending); err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}

	if following, err := IsFollowing(database, alice.Id, remoteId); err != nil || following {
		t.Errorf("Pending edge: want false, got %v (err=%v)", following, err)
	}
}

func TestFollowRelationship(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	if _, err := CreateFollow(database, gates.AllowAll{}, testConf(), alice.Id, carol.Id); err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}

	rel, err := FollowRelationship(database, alice.Id, carol.Id)
	if err != nil {
		t.Fatalf("FollowRelationship failed: %v", err)
	}
	if !rel.IsFollowing || rel.IsFollowedBy {
		t.Errorf("From alice's side: got %+v, want following only", rel)
	}

	rel, err = FollowRelationship(database, carol.Id, alice.Id)
	if err != nil {
		t.Fatalf("FollowRelationship failed: %v", err)
	}
	if rel.IsFollowing || !rel.IsFollowedBy {
		t.Errorf("From carol's side: got %+v, want followed-by only", rel)
	}

	// An anonymous viewer has no relationship to anyone.
	rel, err = FollowRelationship(database, uuid.Nil, carol.Id)
	if err != nil {
		t.Fatalf("FollowRelationship failed: %v", err)
	}
	if rel.IsFollowing || rel.IsFollowedBy {
		t.Errorf("Anonymous viewer: got %+v, want zero relationship", rel)
	}
}

func TestCreateStatusVisibilityMapping(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")

	cases := []struct {
		visibility string
		direct     []string
		wantTo     []string
		wantCc     []string
		wantDM     bool
	}{
		{domain.VisibilityPublic, nil,
			[]string{domain.PublicCollection}, []string{alice.FollowersURI}, false},
		{domain.VisibilityUnlisted, nil,
			[]string{alice.FollowersURI}, []string{domain.PublicCollection}, false},
		{domain.VisibilityPrivate, nil,
			[]string{alice.FollowersURI}, nil, true},
		{domain.VisibilityDirect, []string{"https://remote.example/users/bob"},
			[]string{"https://remote.example/users/bob"}, nil, true},
	}

	for _, tc := range cases {
		status, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
			ActorId:          alice.Id,
			Content:          "hello *world*",
			Visibility:       tc.visibility,
			DirectRecipients: tc.direct,
		})
		if err != nil {
			t.Fatalf("%s: CreateStatus failed: %v", tc.visibility, err)
		}
		err, got := database.ReadStatusById(status.Id)
		if err != nil {
			t.Fatalf("%s: ReadStatusById failed: %v", tc.visibility, err)
		}
		if !equalStrings(got.RecipientTo, tc.wantTo) {
			t.Errorf("%s: to = %v, want %v", tc.visibility, got.RecipientTo, tc.wantTo)
		}
		if !equalStrings(got.RecipientCc, tc.wantCc) {
			t.Errorf("%s: cc = %v, want %v", tc.visibility, got.RecipientCc, tc.wantCc)
		}
		if got.Direct() != tc.wantDM {
			t.Errorf("%s: Direct() = %v, want %v", tc.visibility, got.Direct(), tc.wantDM)
		}
		if !strings.Contains(got.Content, "<em>world</em>") {
			t.Errorf("%s: markdown was not rendered: %s", tc.visibility, got.Content)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateStatusDirectNeedsRecipients(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")

	_, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "psst", Visibility: domain.VisibilityDirect,
	})
	if err == nil {
		t.Error("Direct status without recipients should be rejected")
	}

	_, err = CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "psst", Visibility: domain.VisibilityDirect,
		DirectRecipients: []string{domain.PublicCollection},
	})
	if err == nil {
		t.Error("Direct status addressing the public collection should be rejected")
	}
}

func TestCreateStatusLengthLimit(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")

	_, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: strings.Repeat("ä", domain.MaxStatusLength+1),
		Visibility: domain.VisibilityPublic,
	})
	if err == nil {
		t.Error("Over-length status should be rejected")
	}

	if _, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: strings.Repeat("ä", domain.MaxStatusLength),
		Visibility: domain.VisibilityPublic,
	}); err != nil {
		t.Errorf("Status at the limit should pass: %v", err)
	}
}

func TestCreateStatusMentions(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	status, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "hey @carol and @nobody, hello",
		Visibility: domain.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}

	err, tags := database.ReadTags(status.Id)
	if err != nil {
		t.Fatalf("ReadTags failed: %v", err)
	}
	if len(*tags) != 1 {
		t.Fatalf("Expected 1 mention tag, got %d", len(*tags))
	}
	if (*tags)[0].TargetURI != carol.URI {
		t.Errorf("Mention target = %s, want %s", (*tags)[0].TargetURI, carol.URI)
	}
}

func TestCreateStatusReplyBumpsCounter(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")

	parent, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "root", Visibility: domain.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}

	reply, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "child", Visibility: domain.VisibilityPublic,
		InReplyToId: &parent.Id,
	})
	if err != nil {
		t.Fatalf("CreateStatus reply failed: %v", err)
	}
	if reply.InReplyToURI != parent.URI {
		t.Errorf("Reply should carry the parent URI, got %s", reply.InReplyToURI)
	}

	err, gotParent := database.ReadStatusById(parent.Id)
	if err != nil || gotParent.ReplyCount != 1 {
		t.Errorf("Parent reply count = %d, want 1 (err=%v)", gotParent.ReplyCount, err)
	}

	replies, err := Replies(database, parent.Id)
	if err != nil || len(replies) != 1 || replies[0].Id != reply.Id {
		t.Errorf("Replies: err=%v n=%d", err, len(replies))
	}
}

func TestDraftLifecycle(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")

	draft, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "later", Visibility: domain.VisibilityPublic, Draft: true,
	})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}
	if draft.PublishedAt != nil {
		t.Fatal("Draft must not carry a published timestamp")
	}

	_, gotAlice := database.ReadActorById(alice.Id)
	if gotAlice.StatusCount != 0 {
		t.Error("Drafts must not count as statuses")
	}

	page, err := PublicTimeline(database, testConf(), uuid.Nil, 0, "")
	if err != nil {
		t.Fatalf("PublicTimeline failed: %v", err)
	}
	if len(page.Items) != 0 {
		t.Error("Drafts must never surface on a timeline")
	}

	published, err := PublishDraft(database, gates.AllowAll{}, testConf(), alice.Id, draft.Id)
	if err != nil {
		t.Fatalf("PublishDraft failed: %v", err)
	}
	if published.PublishedAt == nil {
		t.Fatal("Published draft should carry a timestamp")
	}

	_, gotAlice = database.ReadActorById(alice.Id)
	if gotAlice.StatusCount != 1 {
		t.Error("Publishing should bump the status counter")
	}

	// Publishing again is a no-op.
	again, err := PublishDraft(database, gates.AllowAll{}, testConf(), alice.Id, draft.Id)
	if err != nil {
		t.Fatalf("Second PublishDraft failed: %v", err)
	}
	if !again.PublishedAt.Equal(*published.PublishedAt) {
		t.Error("Re-publishing must not move the timestamp")
	}
	_, gotAlice = database.ReadActorById(alice.Id)
	if gotAlice.StatusCount != 1 {
		t.Error("Re-publishing must not bump the counter again")
	}
}

func TestPublishDraftOwnerOnly(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	draft, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "mine", Visibility: domain.VisibilityPublic, Draft: true,
	})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}
	if _, err := PublishDraft(database, gates.AllowAll{}, testConf(), carol.Id, draft.Id); err == nil {
		t.Error("Only the owner can publish a draft")
	}
}

func TestDeleteStatusOwnerOnly(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	status, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "mine", Visibility: domain.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}

	if err := DeleteStatus(database, carol.Id, status.Id); err == nil {
		t.Error("Only the owner can delete a status")
	}
	if err := DeleteStatus(database, alice.Id, status.Id); err != nil {
		t.Fatalf("DeleteStatus failed: %v", err)
	}
	_, gotAlice := database.ReadActorById(alice.Id)
	if gotAlice.StatusCount != 0 {
		t.Error("Deleting should return the status counter to zero")
	}
}

func TestLikeUnlikeStatus(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	status, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "likeable", Visibility: domain.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}

	if err := LikeStatus(database, carol.Id, status.Id); err != nil {
		t.Fatalf("LikeStatus failed: %v", err)
	}
	if err := LikeStatus(database, carol.Id, status.Id); err != nil {
		t.Fatalf("Repeat LikeStatus failed: %v", err)
	}
	err, got := database.ReadStatusById(status.Id)
	if err != nil || got.LikeCount != 1 {
		t.Errorf("Like count = %d, want 1", got.LikeCount)
	}

	// The liked bit follows the viewer.
	page, err := PublicTimeline(database, testConf(), carol.Id, 0, "")
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("PublicTimeline: err=%v n=%d", err, len(page.Items))
	}
	if !page.Items[0].Liked {
		t.Error("Viewer's liked bit should be set")
	}

	if err := UnlikeStatus(database, carol.Id, status.Id); err != nil {
		t.Fatalf("UnlikeStatus failed: %v", err)
	}
	err, got = database.ReadStatusById(status.Id)
	if err != nil || got.LikeCount != 0 {
		t.Errorf("Like count = %d after unlike, want 0", got.LikeCount)
	}
}

func TestTimelinePaging(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")

	for i := 0; i < 5; i++ {
		if _, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
			ActorId: alice.Id, Content: "post", Visibility: domain.VisibilityPublic,
		}); err != nil {
			t.Fatalf("CreateStatus failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	page, err := PublicTimeline(database, testConf(), uuid.Nil, 3, "")
	if err != nil {
		t.Fatalf("PublicTimeline failed: %v", err)
	}
	if len(page.Items) != 3 || !page.HasMore {
		t.Fatalf("Expected a full page with more, got n=%d hasMore=%v", len(page.Items), page.HasMore)
	}
	if page.NextCursor != page.Items[2].Id.String() {
		t.Error("Cursor should be the last item's id")
	}

	rest, err := PublicTimeline(database, testConf(), uuid.Nil, 3, page.NextCursor)
	if err != nil {
		t.Fatalf("PublicTimeline with cursor failed: %v", err)
	}
	if len(rest.Items) != 2 || rest.HasMore {
		t.Errorf("Expected the final 2 rows, got n=%d hasMore=%v", len(rest.Items), rest.HasMore)
	}
}

func TestDMViewsExclusivity(t *testing.T) {
	database := testDB(t)
	alice := makeLocal(t, database, "alice")
	carol := makeLocal(t, database, "carol")

	dm, err := CreateStatus(database, gates.AllowAll{}, testConf(), CreateStatusInput{
		ActorId: alice.Id, Content: "secret", Visibility: domain.VisibilityDirect,
		DirectRecipients: []string{carol.URI},
	})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}

	received, err := ReceivedDMs(database, carol.Id, 0, "")
	if err != nil || len(received.Items) != 1 || received.Items[0].Id != dm.Id {
		t.Errorf("Carol should receive the DM: err=%v n=%d", err, len(received.Items))
	}
	sent, err := SentDMs(database, alice.Id, 0, "")
	if err != nil || len(sent.Items) != 1 {
		t.Errorf("Alice should see her sent DM: err=%v n=%d", err, len(sent.Items))
	}

	// The DM must stay off every public-facing view.
	if page, _ := PublicTimeline(database, testConf(), carol.Id, 0, ""); len(page.Items) != 0 {
		t.Error("DM leaked into the public timeline")
	}
	if page, _ := HomeTimeline(database, carol.Id, 0, ""); len(page.Items) != 0 {
		t.Error("DM leaked into the home timeline")
	}
	if page, _ := ActorTimeline(database, alice.Id, carol.Id, true, 0, ""); len(page.Items) != 0 {
		t.Error("DM leaked into the actor timeline")
	}

	// And it shows up for carol's mentions.
	mentions, err := MentionsTimeline(database, carol.Id, 0, "")
	if err != nil || len(mentions.Items) != 1 {
		t.Errorf("DM should appear in carol's mentions: err=%v n=%d", err, len(mentions.Items))
	}
}
