package playback

import "github.com/foxseedlab/zadankai/internal/conversation"

// Handle is one playable audio clip as seen by the delivery queue.
type Handle interface {
	Play()
	Stop()
}

type queueEntry struct {
	handle Handle
	skip   bool
}

// DeliveryQueue holds playable handles keyed by message id, filled in
// arbitrary arrival order. A skip entry's Play advances past it instead of
// producing sound; it stands in for a moderation-skipped turn.
type DeliveryQueue struct {
	entries map[string]queueEntry
}

func NewDeliveryQueue() *DeliveryQueue {
	return &DeliveryQueue{entries: make(map[string]queueEntry)}
}

// Put registers the playable handle for a message id.
func (q *DeliveryQueue) Put(id string, h Handle) {
	q.entries[id] = queueEntry{handle: h}
}

// PutSkip registers a skip entry for a message id.
func (q *DeliveryQueue) PutSkip(id string) {
	q.entries[id] = queueEntry{skip: true}
}

// Has reports whether any entry (playable or skip) exists for the id.
func (q *DeliveryQueue) Has(id string) bool {
	_, ok := q.entries[id]
	return ok
}

// Play starts playback at the given transcript index, advancing forward past
// contiguous skip entries. It returns the index actually played and true, or
// the original index and false when the slot (or every slot behind a skip
// run) is still missing. A missing slot makes the whole call a no-op.
func (q *DeliveryQueue) Play(transcript []conversation.Message, index int) (int, bool) {
	for i := index; i >= 0 && i < len(transcript); i++ {
		e, ok := q.entries[transcript[i].ID]
		if !ok {
			return index, false
		}
		if e.skip {
			continue
		}
		e.handle.Play()
		return i, true
	}
	return index, false
}

// Stop stops the handle for the id if one is registered and playable.
func (q *DeliveryQueue) Stop(id string) {
	if e, ok := q.entries[id]; ok && !e.skip {
		e.handle.Stop()
	}
}
