// Package delivery ties the message store to the connection registry: every
// state change persists first, then fans out to whichever counterpart is
// online. Fan-out is best-effort; the store is the source of truth and an
// offline or slow peer never fails the caller's request.
package delivery

import (
	"context"

	"chatrelay/pkg/blob"
	"chatrelay/pkg/live"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/store"
	"chatrelay/pkg/validation"
)

// Pipeline executes message operations end to end.
type Pipeline struct {
	Reg   *registry.Registry
	Blobs blob.Store
}

// New wires a pipeline over the given registry and blob store.
func New(reg *registry.Registry, blobs blob.Store) *Pipeline {
	return &Pipeline{Reg: reg, Blobs: blobs}
}

// Send validates, resolves the image payload, persists the message and
// pushes it to the receiver if connected. The returned message is the
// persisted record, acked only after the store write succeeds.
func (p *Pipeline) Send(ctx context.Context, senderID, receiverID string, payload validation.SendPayload) (models.Message, error) {
	if err := validation.ValidateSend(senderID, receiverID, payload); err != nil {
		return models.Message{}, err
	}
	image, err := blob.ResolveImage(ctx, p.Blobs, payload.Image)
	if err != nil {
		return models.Message{}, err
	}
	msg, err := store.CreateMessage(senderID, receiverID, payload.Text, image, payload.ReplyTo)
	if err != nil {
		return models.Message{}, err
	}
	p.push(receiverID, live.Event{Event: live.KindNewMessage, Data: msg})
	return msg, nil
}

// OpenConversation returns the full history between reader and peer in
// send order. Opening it marks every unseen message from peer as seen and
// emits one receipt per flipped message back to the peer's session.
func (p *Pipeline) OpenConversation(reader, peer string) ([]models.Message, error) {
	flipped, err := store.MarkSeenBulk(peer, reader)
	if err != nil {
		return nil, err
	}
	for _, id := range flipped {
		p.push(peer, live.Event{Event: live.KindMessagesSeen, Data: live.SeenReceipt{MessageID: id}})
	}
	return store.ListConversation(reader, peer)
}

// MarkSeen flips a single message to seen on behalf of its receiver. A
// receipt goes to the sender only when this call performed the transition,
// so each message produces at most one receipt.
func (p *Pipeline) MarkSeen(msgID, requesterID string) (models.Message, error) {
	msg, flipped, err := store.MarkSeenOne(msgID, requesterID)
	if err != nil {
		return models.Message{}, err
	}
	if flipped {
		p.push(msg.SenderID, live.Event{Event: live.KindMessagesSeen, Data: live.SeenReceipt{MessageID: msg.ID}})
	}
	return msg, nil
}

// Delete tombstones a message on behalf of its sender and notifies the
// receiver so their open view updates in place.
func (p *Pipeline) Delete(msgID, requesterID string) (models.Message, error) {
	msg, err := store.SoftDelete(msgID, requesterID)
	if err != nil {
		return models.Message{}, err
	}
	p.push(msg.ReceiverID, live.Event{Event: live.KindMessageDeleted, Data: msg})
	return msg, nil
}

// React toggles requesterID's reaction on a message and pushes the updated
// record to the conversation counterpart (the receiver when the sender
// reacts, the sender when the receiver reacts).
func (p *Pipeline) React(msgID, requesterID, emoji string) (models.Message, error) {
	if err := validation.ValidateEmoji(emoji); err != nil {
		return models.Message{}, err
	}
	msg, err := store.ToggleReaction(msgID, requesterID, emoji)
	if err != nil {
		return models.Message{}, err
	}
	counterpart := msg.ReceiverID
	if requesterID == msg.ReceiverID {
		counterpart = msg.SenderID
	}
	p.push(counterpart, live.Event{Event: live.KindMessageReaction, Data: msg})
	return msg, nil
}

// Peers returns the reader's sidebar: every user they have exchanged
// messages with, with unseen counts.
func (p *Pipeline) Peers(reader string) ([]models.PeerSummary, error) {
	return store.Peers(reader)
}

// NotifyTyping relays a transient typing indicator from sender to
// receiver. Nothing is persisted; an offline receiver just misses it.
func (p *Pipeline) NotifyTyping(senderID, receiverID string) {
	p.relayTyping(live.KindTyping, senderID, receiverID)
}

// NotifyStopTyping relays the end of a typing burst.
func (p *Pipeline) NotifyStopTyping(senderID, receiverID string) {
	p.relayTyping(live.KindStopTyping, senderID, receiverID)
}

func (p *Pipeline) relayTyping(kind live.Kind, senderID, receiverID string) {
	if senderID == "" || receiverID == "" || senderID == receiverID {
		return
	}
	p.push(receiverID, live.Event{Event: kind, Data: live.TypingSignal{SenderID: senderID}})
}

// push delivers ev to userID's session when one exists. Drops are logged
// at debug only; they are the expected offline path.
func (p *Pipeline) push(userID string, ev live.Event) {
	s, ok := p.Reg.Lookup(userID)
	if !ok {
		logger.Debug("push_skipped_offline", "user", userID, "event", string(ev.Event))
		return
	}
	if !s.Push(ev) {
		logger.Warn("push_dropped", "user", userID, "event", string(ev.Event))
	}
}
