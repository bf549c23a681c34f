package store

import (
	"errors"
	"sync"
	"testing"

	"chatrelay/pkg/errs"
	"chatrelay/pkg/models"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := Close(); err != nil {
			t.Fatalf("failed to close store: %v", err)
		}
	})
}

func mustCreate(t *testing.T, sender, receiver, text string) models.Message {
	t.Helper()
	m, err := CreateMessage(sender, receiver, text, "", "")
	if err != nil {
		t.Fatalf("create message failed: %v", err)
	}
	return m
}

func TestCreateMessageRequiresContent(t *testing.T) {
	openTestStore(t)
	if _, err := CreateMessage("alice", "bob", "", "", ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateMessagePersistsSynchronously(t *testing.T) {
	openTestStore(t)
	m := mustCreate(t, "alice", "bob", "hello")
	if m.ID == "" || m.CreatedTS == 0 {
		t.Fatalf("missing server-assigned fields: %+v", m)
	}
	got, err := GetMessage(m.ID)
	if err != nil {
		t.Fatalf("get after create failed: %v", err)
	}
	if got.Text != "hello" || got.SenderID != "alice" || got.ReceiverID != "bob" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.Seen || got.Deleted {
		t.Fatalf("new message must start unseen and undeleted: %+v", got)
	}
}

func TestConversationInterleavesBothDirections(t *testing.T) {
	openTestStore(t)
	first := mustCreate(t, "alice", "bob", "one")
	second := mustCreate(t, "bob", "alice", "two")
	third := mustCreate(t, "alice", "bob", "three")

	msgs, err := ListConversation("bob", "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	wantOrder := []string{first.ID, second.ID, third.ID}
	for i, want := range wantOrder {
		if msgs[i].ID != want {
			t.Fatalf("position %d: expected %s got %s", i, want, msgs[i].ID)
		}
	}

	// Argument order must not matter.
	rev, err := ListConversation("alice", "bob")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rev) != 3 || rev[0].ID != first.ID {
		t.Fatalf("pair key not symmetric: %+v", rev)
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	openTestStore(t)
	mustCreate(t, "alice", "bob", "for bob")
	mustCreate(t, "alice", "carol", "for carol")

	msgs, err := ListConversation("alice", "bob")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "for bob" {
		t.Fatalf("conversation leaked: %+v", msgs)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	openTestStore(t)
	if _, err := GetMessage("msg-does-not-exist"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkSeenOneReceiverOnly(t *testing.T) {
	openTestStore(t)
	m := mustCreate(t, "alice", "bob", "hi")

	if _, _, err := MarkSeenOne(m.ID, "alice"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("sender marking seen must be rejected, got %v", err)
	}
	if _, _, err := MarkSeenOne(m.ID, "carol"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("third party marking seen must be rejected, got %v", err)
	}

	got, flipped, err := MarkSeenOne(m.ID, "bob")
	if err != nil {
		t.Fatalf("receiver mark seen failed: %v", err)
	}
	if !flipped || !got.Seen {
		t.Fatalf("expected seen transition, got flipped=%v seen=%v", flipped, got.Seen)
	}

	// Monotonic: the second call is a no-op without a transition.
	got, flipped, err = MarkSeenOne(m.ID, "bob")
	if err != nil {
		t.Fatalf("repeat mark seen failed: %v", err)
	}
	if flipped {
		t.Fatalf("repeat mark seen must not transition again")
	}
	if !got.Seen {
		t.Fatalf("seen flag lost on repeat call")
	}
}

func TestMarkSeenBulkReturnsOnlyFlipped(t *testing.T) {
	openTestStore(t)
	m1 := mustCreate(t, "alice", "bob", "one")
	m2 := mustCreate(t, "alice", "bob", "two")
	theirs := mustCreate(t, "bob", "alice", "mine")

	// bob opens the conversation: alice's two messages flip, bob's own do not
	flipped, err := MarkSeenBulk("alice", "bob")
	if err != nil {
		t.Fatalf("bulk seen failed: %v", err)
	}
	if len(flipped) != 2 {
		t.Fatalf("expected 2 transitions, got %v", flipped)
	}
	seen := map[string]bool{flipped[0]: true, flipped[1]: true}
	if !seen[m1.ID] || !seen[m2.ID] {
		t.Fatalf("wrong ids transitioned: %v", flipped)
	}

	if got, _ := GetMessage(theirs.ID); got.Seen {
		t.Fatalf("bulk seen flipped a message in the other direction")
	}

	// Second open with nothing new: no transitions, no receipts.
	flipped, err = MarkSeenBulk("alice", "bob")
	if err != nil {
		t.Fatalf("repeat bulk seen failed: %v", err)
	}
	if len(flipped) != 0 {
		t.Fatalf("repeat bulk seen must be empty, got %v", flipped)
	}
}

func TestSoftDeleteSenderOnlyTombstone(t *testing.T) {
	openTestStore(t)
	m, err := CreateMessage("alice", "bob", "secret", "https://cdn.example.com/x.png", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := ToggleReaction(m.ID, "bob", "👍"); err != nil {
		t.Fatalf("react failed: %v", err)
	}

	if _, err := SoftDelete(m.ID, "bob"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("receiver delete must be rejected, got %v", err)
	}

	got, err := SoftDelete(m.ID, "alice")
	if err != nil {
		t.Fatalf("sender delete failed: %v", err)
	}
	if !got.Deleted || got.Text != models.TombstoneText || got.Image != "" {
		t.Fatalf("tombstone malformed: %+v", got)
	}
	if len(got.Reactions) != 1 {
		t.Fatalf("reactions must survive deletion: %+v", got.Reactions)
	}

	// Idempotent.
	again, err := SoftDelete(m.ID, "alice")
	if err != nil {
		t.Fatalf("repeat delete failed: %v", err)
	}
	if !again.Deleted || again.Text != models.TombstoneText {
		t.Fatalf("repeat delete changed the tombstone: %+v", again)
	}
}

func TestToggleReactionRules(t *testing.T) {
	openTestStore(t)
	m := mustCreate(t, "alice", "bob", "react to me")

	got, err := ToggleReaction(m.ID, "bob", "👍")
	if err != nil {
		t.Fatalf("first reaction failed: %v", err)
	}
	if len(got.Reactions) != 1 || got.Reactions[0].Emoji != "👍" {
		t.Fatalf("unexpected reactions: %+v", got.Reactions)
	}

	// Different emoji replaces, never stacks.
	got, err = ToggleReaction(m.ID, "bob", "❤️")
	if err != nil {
		t.Fatalf("replace reaction failed: %v", err)
	}
	if len(got.Reactions) != 1 || got.Reactions[0].Emoji != "❤️" {
		t.Fatalf("replace produced %+v", got.Reactions)
	}

	// Second user reacts independently.
	got, err = ToggleReaction(m.ID, "alice", "👍")
	if err != nil {
		t.Fatalf("second user reaction failed: %v", err)
	}
	if len(got.Reactions) != 2 {
		t.Fatalf("expected two reactions, got %+v", got.Reactions)
	}

	// Same emoji removes only the caller's reaction.
	got, err = ToggleReaction(m.ID, "bob", "❤️")
	if err != nil {
		t.Fatalf("remove reaction failed: %v", err)
	}
	if len(got.Reactions) != 1 || got.Reactions[0].UserID != "alice" {
		t.Fatalf("remove touched the wrong reaction: %+v", got.Reactions)
	}
}

func TestConcurrentReactionsSameMessage(t *testing.T) {
	openTestStore(t)
	m := mustCreate(t, "alice", "bob", "pile on")

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			if _, err := ToggleReaction(m.ID, user, "🔥"); err != nil {
				t.Errorf("reaction for %s failed: %v", user, err)
			}
		}(u)
	}
	wg.Wait()

	got, err := GetMessage(m.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Reactions) != len(users) {
		t.Fatalf("lost updates: expected %d reactions, got %d", len(users), len(got.Reactions))
	}
}

func TestReplyExpansionTracksTarget(t *testing.T) {
	openTestStore(t)
	target := mustCreate(t, "alice", "bob", "original")
	reply, err := CreateMessage("bob", "alice", "answering", "", target.ID)
	if err != nil {
		t.Fatalf("create reply failed: %v", err)
	}
	if reply.Reply == nil || reply.Reply.Text != "original" {
		t.Fatalf("reply summary missing at create: %+v", reply.Reply)
	}

	// Deleting the target must surface the tombstone on the next read.
	if _, err := SoftDelete(target.ID, "alice"); err != nil {
		t.Fatalf("delete target failed: %v", err)
	}
	msgs, err := ListConversation("alice", "bob")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var found bool
	for _, m := range msgs {
		if m.ID == reply.ID {
			found = true
			if m.Reply == nil || m.Reply.Text != models.TombstoneText {
				t.Fatalf("reply summary not refreshed: %+v", m.Reply)
			}
		}
	}
	if !found {
		t.Fatalf("reply message missing from conversation")
	}
}

func TestReplyToMissingTargetKeepsReference(t *testing.T) {
	openTestStore(t)
	m, err := CreateMessage("alice", "bob", "dangling", "", "msg-gone")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if m.ReplyTo != "msg-gone" {
		t.Fatalf("reference dropped: %+v", m)
	}
	if m.Reply != nil {
		t.Fatalf("summary invented for missing target: %+v", m.Reply)
	}
}

func TestPeersAndUnseenCounts(t *testing.T) {
	openTestStore(t)
	mustCreate(t, "bob", "alice", "one")
	mustCreate(t, "bob", "alice", "two")
	mustCreate(t, "carol", "alice", "hey")
	mustCreate(t, "alice", "dave", "outbound only")

	peers, err := Peers("alice")
	if err != nil {
		t.Fatalf("peers failed: %v", err)
	}
	counts := map[string]int{}
	for _, p := range peers {
		counts[p.UserID] = p.Unseen
	}
	if len(counts) != 3 {
		t.Fatalf("expected 3 peers, got %+v", peers)
	}
	if counts["bob"] != 2 || counts["carol"] != 1 || counts["dave"] != 0 {
		t.Fatalf("wrong unseen counts: %+v", counts)
	}

	// Opening the bob conversation zeroes its count only.
	if _, err := MarkSeenBulk("bob", "alice"); err != nil {
		t.Fatalf("bulk seen failed: %v", err)
	}
	n, err := UnseenCount("alice", "bob")
	if err != nil {
		t.Fatalf("unseen count failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 unseen from bob, got %d", n)
	}
	n, err = UnseenCount("alice", "carol")
	if err != nil {
		t.Fatalf("unseen count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("carol count disturbed: %d", n)
	}
}
