// Package bridge is the process-wide fan-out from call events to host
// subscribers. Delivery is synchronous and fire-and-forget: an event published
// on a channel with no subscribers is gone.
package bridge

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Channel string

const (
	Login                  Channel = "login"
	IncomingCall           Channel = "incoming-call"
	CallStatusChange       Channel = "call-status-change"
	CallParticipantsChange Channel = "call-participants-change"
	ValueChange            Channel = "generic-value-change"
)

// Channels lists the fixed channel set in a stable order.
var Channels = []Channel{Login, IncomingCall, CallStatusChange, CallParticipantsChange, ValueChange}

var ErrUnknownChannel = errors.New("unknown channel")

func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Event is one published payload.
type Event struct {
	Channel Channel
	Seq     uint64
	At      time.Time
	Payload any
}

type Handler func(Event)

type entry struct {
	id      uint64
	handler Handler
}

type channelState struct {
	// dispatch serializes publishers so subscribers observe publish order.
	dispatch sync.Mutex
	seq      uint64
}

type Bridge struct {
	mu     sync.RWMutex
	subs   map[Channel][]*entry
	nextID uint64

	chans map[Channel]*channelState
}

func New() *Bridge {
	b := &Bridge{
		subs:  make(map[Channel][]*entry),
		chans: make(map[Channel]*channelState, len(Channels)),
	}
	for _, c := range Channels {
		b.chans[c] = &channelState{}
	}
	return b
}

// Subscription is an add-only handle; Remove detaches it and is idempotent.
type Subscription struct {
	b    *Bridge
	ch   Channel
	id   uint64
	once sync.Once
}

func (s *Subscription) Channel() Channel { return s.ch }

func (s *Subscription) Remove() {
	s.once.Do(func() { s.b.remove(s.ch, s.id) })
}

func (b *Bridge) Subscribe(ch Channel, h Handler) (*Subscription, error) {
	if !ch.Valid() {
		return nil, ErrUnknownChannel
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	e := &entry{id: b.nextID, handler: h}
	b.subs[ch] = append(b.subs[ch], e)
	log.Debug().Str("module", "bridge").Str("channel", string(ch)).Uint64("sub", e.id).Msg("subscribed")
	return &Subscription{b: b, ch: ch, id: e.id}, nil
}

func (b *Bridge) remove(ch Channel, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[ch]
	for i, e := range list {
		if e.id == id {
			// copy-on-write: dispatch may still be iterating the old slice
			next := make([]*entry, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			b.subs[ch] = next
			log.Debug().Str("module", "bridge").Str("channel", string(ch)).Uint64("sub", id).Msg("unsubscribed")
			return
		}
	}
}

// SubscriberCount reports how many handlers are attached to ch.
func (b *Bridge) SubscriberCount(ch Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ch])
}

// Publish delivers payload to every current subscriber of ch, in subscription
// order, and returns the number of handlers invoked.
func (b *Bridge) Publish(ch Channel, payload any) int {
	cs, ok := b.chans[ch]
	if !ok {
		log.Error().Str("module", "bridge").Str("channel", string(ch)).Msg("publish on unknown channel dropped")
		return 0
	}

	cs.dispatch.Lock()
	defer cs.dispatch.Unlock()

	b.mu.RLock()
	snapshot := b.subs[ch]
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		log.Debug().Str("module", "bridge").Str("channel", string(ch)).Msg("no subscribers, event dropped")
		return 0
	}

	cs.seq++
	ev := Event{Channel: ch, Seq: cs.seq, At: time.Now(), Payload: payload}
	for _, e := range snapshot {
		e.handler(ev)
	}
	return len(snapshot)
}
