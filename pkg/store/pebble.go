// Package store is the durable message store. Messages live in pebble
// under a conversation-range key so a single ascending prefix scan yields
// the interleaved two-way history, with a per-message pointer key for O(1)
// lookup by id. All sub-state mutations (seen, delete, reaction) are
// read-modify-write cycles serialized by a striped per-message mutex.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/errs"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/utils"
)

var (
	db     *pebble.DB
	dbPath string
)

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// stripes serializes read-modify-write cycles per message id. Seen,
// delete and reaction transitions for one message always contend on the
// same stripe, so no concurrent writer can lose an update.
var stripes [64]sync.Mutex

func stripeFor(msgID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(msgID))
	return &stripes[h.Sum32()%uint32(len(stripes))]
}

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return errs.Upstreamf("open pebble at %s: %v", path, err)
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// Key layout:
//
//	conv:<pair>:msg:<unix_nano_padded>-<seq>  -> message JSON (canonical copy)
//	msg:<id>                                  -> conv key (pointer)
//	peer:<user>:<other>                       -> "1" (sidebar marker)
func convKey(pair string, ts int64, s uint64) []byte {
	return []byte(fmt.Sprintf("conv:%s:msg:%020d-%06d", pair, ts, s))
}

func convPrefix(pair string) []byte {
	return []byte("conv:" + pair + ":msg:")
}

func idKey(msgID string) []byte {
	return []byte("msg:" + msgID)
}

func peerKey(user, other string) []byte {
	return []byte("peer:" + user + ":" + other)
}

// CreateMessage validates, assigns id and creation time, and persists a new
// message atomically. The returned message is the canonical persisted form
// with the reply summary resolved (when the target exists). CreateMessage
// returns only after pebble has acknowledged a synced write, so a
// subsequent conversation read always observes the message.
func CreateMessage(senderID, receiverID, text, image, replyTo string) (models.Message, error) {
	if db == nil {
		return models.Message{}, errs.Upstreamf("pebble not opened; call store.Open first")
	}
	if text == "" && image == "" {
		return models.Message{}, errs.Validationf("message requires text or image")
	}

	m := models.Message{
		ID:         utils.GenID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedTS:  time.Now().UTC().UnixNano(),
		ReplyTo:    replyTo,
	}
	if replyTo != "" {
		// The reply target may be missing (deleted store, stale client);
		// the reference is kept and the summary simply omitted.
		if target, err := GetMessage(replyTo); err == nil {
			m.Reply = replySummaryOf(target)
		}
	}

	ts := m.CreatedTS
	s := atomic.AddUint64(&seq, 1)
	pair := models.PairKey(senderID, receiverID)
	key := convKey(pair, ts, s)

	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, errs.Upstreamf("marshal message: %v", err)
	}

	batch := db.NewBatch()
	defer batch.Close()
	_ = batch.Set(key, data, nil)
	_ = batch.Set(idKey(m.ID), key, nil)
	_ = batch.Set(peerKey(senderID, receiverID), []byte("1"), nil)
	_ = batch.Set(peerKey(receiverID, senderID), []byte("1"), nil)
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("save_message_failed", "pair", pair, "key", string(key), "error", err)
		return models.Message{}, errs.Upstreamf("persist message: %v", err)
	}
	logger.Info("message_saved", "pair", pair, "id", m.ID)
	messagesCreated.Inc()
	return m, nil
}

// GetMessage returns the current state of a message by id.
func GetMessage(msgID string) (models.Message, error) {
	m, _, err := getMessageWithKey(msgID)
	return m, err
}

func getMessageWithKey(msgID string) (models.Message, []byte, error) {
	if db == nil {
		return models.Message{}, nil, errs.Upstreamf("pebble not opened; call store.Open first")
	}
	ptr, closer, err := db.Get(idKey(msgID))
	if err == pebble.ErrNotFound {
		return models.Message{}, nil, errs.NotFoundf("message %s", msgID)
	}
	if err != nil {
		return models.Message{}, nil, errs.Upstreamf("lookup message %s: %v", msgID, err)
	}
	key := append([]byte(nil), ptr...)
	_ = closer.Close()

	v, closer, err := db.Get(key)
	if err != nil {
		return models.Message{}, nil, errs.Upstreamf("read message %s: %v", msgID, err)
	}
	defer closer.Close()
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return models.Message{}, nil, errs.Upstreamf("invalid message JSON for %s: %v", msgID, err)
	}
	return m, key, nil
}

// mutate applies fn to the current state of the message under the
// per-message stripe and persists the result with a synced write. fn may
// return an error to abort without writing, or (nil, false) to signal a
// no-op that should return the unchanged message.
func mutate(msgID string, fn func(*models.Message) (bool, error)) (models.Message, error) {
	mu := stripeFor(msgID)
	mu.Lock()
	defer mu.Unlock()

	m, key, err := getMessageWithKey(msgID)
	if err != nil {
		return models.Message{}, err
	}
	changed, err := fn(&m)
	if err != nil {
		return models.Message{}, err
	}
	if !changed {
		return m, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, errs.Upstreamf("marshal message: %v", err)
	}
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("update_message_failed", "id", msgID, "error", err)
		return models.Message{}, errs.Upstreamf("persist message update: %v", err)
	}
	return m, nil
}

// MarkSeenOne transitions one message to seen on behalf of requesterID.
// Only the receiver of a message may mark it seen. Already-seen messages
// are a no-op (seen is monotonic); the bool reports whether this call
// performed the transition, so callers emit at most one receipt per id.
func MarkSeenOne(msgID, requesterID string) (models.Message, bool, error) {
	flipped := false
	m, err := mutate(msgID, func(m *models.Message) (bool, error) {
		if m.ReceiverID != requesterID {
			return false, errs.Unauthorizedf("only the receiver may mark a message seen")
		}
		if m.Seen {
			return false, nil
		}
		m.Seen = true
		flipped = true
		return true, nil
	})
	if err == nil && flipped {
		seenTransitions.Inc()
	}
	return m, flipped, err
}

// MarkSeenBulk transitions every unseen message from senderID to
// receiverID and returns exactly the ids that changed. A second call with
// no intervening sends returns an empty slice. Each transition goes
// through the same per-message stripe as MarkSeenOne, so the two entry
// paths cannot race each other into double receipts.
func MarkSeenBulk(senderID, receiverID string) ([]string, error) {
	if db == nil {
		return nil, errs.Upstreamf("pebble not opened; call store.Open first")
	}
	pair := models.PairKey(senderID, receiverID)
	prefix := convPrefix(pair)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errs.Upstreamf("iterate conversation: %v", err)
	}
	var candidates []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Seen {
			candidates = append(candidates, m.ID)
		}
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return nil, errs.Upstreamf("iterate conversation: %v", err)
	}
	if err := iter.Close(); err != nil {
		return nil, errs.Upstreamf("iterate conversation: %v", err)
	}

	// Re-check under each message's stripe; another path may have won.
	transitioned := make([]string, 0, len(candidates))
	for _, id := range candidates {
		flipped := false
		_, err := mutate(id, func(m *models.Message) (bool, error) {
			if m.Seen {
				return false, nil
			}
			m.Seen = true
			flipped = true
			return true, nil
		})
		if err != nil {
			return transitioned, err
		}
		if flipped {
			transitioned = append(transitioned, id)
		}
	}
	if len(transitioned) > 0 {
		logger.Info("messages_seen_bulk", "pair", pair, "count", len(transitioned))
		seenTransitions.Add(float64(len(transitioned)))
	}
	return transitioned, nil
}

// SoftDelete tombstones a message on behalf of requesterID. Only the
// sender may delete; repeated deletes are a no-op returning the tombstoned
// message. Reactions and the reply reference are untouched.
func SoftDelete(msgID, requesterID string) (models.Message, error) {
	m, err := mutate(msgID, func(m *models.Message) (bool, error) {
		if m.SenderID != requesterID {
			return false, errs.Unauthorizedf("only the sender may delete a message")
		}
		if m.Deleted {
			return false, nil
		}
		m.Deleted = true
		m.Text = models.TombstoneText
		m.Image = ""
		return true, nil
	})
	if err != nil {
		return models.Message{}, err
	}
	logger.Info("message_soft_deleted", "id", msgID, "actor", requesterID)
	messagesDeleted.Inc()
	return m, nil
}

// ToggleReaction applies the reaction toggle rule for (msgID, userID):
// same emoji removes the reaction, a different emoji replaces it, no prior
// reaction appends one. At most one reaction per user survives.
func ToggleReaction(msgID, userID, emoji string) (models.Message, error) {
	m, err := mutate(msgID, func(m *models.Message) (bool, error) {
		for i, r := range m.Reactions {
			if r.UserID != userID {
				continue
			}
			if r.Emoji == emoji {
				m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
			} else {
				m.Reactions[i].Emoji = emoji
			}
			return true, nil
		}
		m.Reactions = append(m.Reactions, models.Reaction{UserID: userID, Emoji: emoji})
		return true, nil
	})
	if err != nil {
		return models.Message{}, err
	}
	reactionsToggled.Inc()
	return m, nil
}

// ListConversation returns the full two-way history between userA and
// userB ascending by creation time, with reply targets expanded to their
// current state (tombstone text when deleted). Read-only projection.
func ListConversation(userA, userB string) ([]models.Message, error) {
	if db == nil {
		return nil, errs.Upstreamf("pebble not opened; call store.Open first")
	}
	pair := models.PairKey(userA, userB)
	prefix := convPrefix(pair)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errs.Upstreamf("iterate conversation: %v", err)
	}
	defer iter.Close()

	out := make([]models.Message, 0, 64)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("conversation_invalid_message_json", "pair", pair, "key", string(iter.Key()))
			continue
		}
		if m.ReplyTo != "" {
			if target, err := GetMessage(m.ReplyTo); err == nil {
				m.Reply = replySummaryOf(target)
			}
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, errs.Upstreamf("iterate conversation: %v", err)
	}
	logger.Debug("conversation_listed", "pair", pair, "count", len(out))
	return out, nil
}

// UnseenCount counts messages from peer to reader not yet seen.
func UnseenCount(reader, peer string) (int, error) {
	if db == nil {
		return 0, errs.Upstreamf("pebble not opened; call store.Open first")
	}
	prefix := convPrefix(models.PairKey(reader, peer))
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, errs.Upstreamf("iterate conversation: %v", err)
	}
	defer iter.Close()
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.SenderID == peer && m.ReceiverID == reader && !m.Seen {
			n++
		}
	}
	return n, iter.Error()
}

// Peers returns the sidebar view for reader: every user they share a
// conversation with plus the unseen count from each, ordered by peer id.
func Peers(reader string) ([]models.PeerSummary, error) {
	if db == nil {
		return nil, errs.Upstreamf("pebble not opened; call store.Open first")
	}
	prefix := []byte("peer:" + reader + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errs.Upstreamf("iterate peers: %v", err)
	}
	var peers []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		peers = append(peers, string(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return nil, errs.Upstreamf("iterate peers: %v", err)
	}
	if err := iter.Close(); err != nil {
		return nil, errs.Upstreamf("iterate peers: %v", err)
	}

	out := make([]models.PeerSummary, 0, len(peers))
	for _, p := range peers {
		n, err := UnseenCount(reader, p)
		if err != nil {
			return nil, err
		}
		out = append(out, models.PeerSummary{UserID: p, Unseen: n})
	}
	return out, nil
}

func replySummaryOf(m models.Message) *models.ReplySummary {
	return &models.ReplySummary{
		ID:       m.ID,
		SenderID: m.SenderID,
		Text:     m.Text,
		Image:    m.Image,
	}
}
