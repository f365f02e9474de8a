package extension

import (
	"context"
	"sync"
)

// subscriptionEvent is one item handed to a joined Subscriber.
type subscriptionEvent struct {
	item interface{}
	err  error
	done bool
}

// upstream is one live Host subscription, possibly shared by several
// gateway subscribers that requested the same dedup key.
type upstream struct {
	handle SubscriptionHandle

	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Subscriber is one gateway client's view of a (possibly shared)
// upstream event stream.
type Subscriber struct {
	Events chan subscriptionEvent

	parent *Subscriptions
	key    string // "" for an unkeyed, never-shared subscription
	up     *upstream
}

// Subscriptions joins concurrent subscription requests that produce the
// same dedup key onto one upstream Host stream, broadcasting every item
// to each joined Subscriber (spec §4.8: "the new subscriber joins the
// existing broadcast channel rather than creating a new upstream
// stream"). Every request still calls Host.CreateSubscription once (the
// contract is that the dedup key is only known after that call
// returns); when the key matches an already-open upstream, the
// just-opened one is immediately dropped again and the caller is joined
// to the existing broadcast instead.
type Subscriptions struct {
	host Host

	mu    sync.Mutex
	byKey map[string]*upstream
}

// NewSubscriptions builds a Subscriptions registry over host.
func NewSubscriptions(host Host) *Subscriptions {
	return &Subscriptions{host: host, byKey: map[string]*upstream{}}
}

// Join opens (or joins an existing broadcast for) the subscription
// described by prepared/shared/arg.
func (s *Subscriptions) Join(ctx context.Context, prepared Prepared, shared SharedContext, arg ResolveArg) (*Subscriber, error) {
	handle, dedupKey, err := s.host.CreateSubscription(ctx, prepared, shared, arg)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{Events: make(chan subscriptionEvent, 16), parent: s}

	if len(dedupKey) == 0 {
		up := &upstream{handle: handle, subs: map[*Subscriber]struct{}{}}
		up.subs[sub] = struct{}{}
		sub.up = up
		go s.pump(ctx, up)
		return sub, nil
	}

	key := string(dedupKey)
	sub.key = key

	s.mu.Lock()
	if existing, ok := s.byKey[key]; ok {
		s.mu.Unlock()
		// Someone already has this upstream open; this call's own
		// handle goes unused.
		_ = s.host.DropSubscription(ctx, handle)
		existing.mu.Lock()
		existing.subs[sub] = struct{}{}
		existing.mu.Unlock()
		sub.up = existing
		return sub, nil
	}
	up := &upstream{handle: handle, subs: map[*Subscriber]struct{}{sub: {}}}
	s.byKey[key] = up
	s.mu.Unlock()

	sub.up = up
	go s.pump(ctx, up)
	return sub, nil
}

// pump reads handle's events until it ends or errors, fanning each one
// out to every currently-joined Subscriber.
func (s *Subscriptions) pump(ctx context.Context, up *upstream) {
	for {
		item, done, err := s.host.NextItem(ctx, up.handle)
		ev := subscriptionEvent{item: item, err: err, done: done}

		up.mu.Lock()
		for sub := range up.subs {
			select {
			case sub.Events <- ev:
			default:
				// A slow subscriber drops an event rather than
				// blocking the whole broadcast; spec §4.8 does not
				// require delivery guarantees across joined
				// subscribers.
			}
		}
		stop := done || err != nil
		up.mu.Unlock()

		if stop {
			return
		}
	}
}

// Leave detaches sub from its upstream, dropping the upstream entirely
// (and closing its Host subscription) once the last joined subscriber
// has left.
func (s *Subscriptions) Leave(ctx context.Context, sub *Subscriber) error {
	up := sub.up
	up.mu.Lock()
	delete(up.subs, sub)
	empty := len(up.subs) == 0
	up.mu.Unlock()

	if !empty {
		return nil
	}

	if sub.key != "" {
		s.mu.Lock()
		if s.byKey[sub.key] == up {
			delete(s.byKey, sub.key)
		}
		s.mu.Unlock()
	}
	return s.host.DropSubscription(ctx, up.handle)
}
