// Package realtime tracks live sync connections per user and fans document
// changes out to them.
package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
	"github.com/capitalize-ai/chat-sync/pkg/metrics"
)

// Sink delivers events to one open connection. Send must not block; an error
// means the connection is gone and the sink will be dropped. Implementations
// must be comparable, typically a pointer.
type Sink interface {
	Send(event model.SyncEvent) error
}

// Registry maps user ids to the sinks of their open connections.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[Sink]struct{}
	log   *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{
		users: make(map[string]map[Sink]struct{}),
		log:   log,
	}
}

// Register adds sink to the set for userID.
func (r *Registry) Register(userID string, sink Sink) {
	r.mu.Lock()
	set, ok := r.users[userID]
	if !ok {
		set = make(map[Sink]struct{})
		r.users[userID] = set
	}
	_, existed := set[sink]
	set[sink] = struct{}{}
	r.mu.Unlock()

	if !existed {
		metrics.SubscribersActive.Inc()
		if !ok {
			metrics.SubscribedUsers.Inc()
		}
	}
	r.log.Debug("subscriber registered", zap.String("user_id", userID))
}

// Unregister removes sink from the set for userID. Removing an unknown sink
// is a no-op.
func (r *Registry) Unregister(userID string, sink Sink) {
	r.mu.Lock()
	removed, emptied := r.remove(userID, sink)
	r.mu.Unlock()

	r.recordRemoval(removed, emptied)
	if removed {
		r.log.Debug("subscriber unregistered", zap.String("user_id", userID))
	}
}

// Notify pushes an update carrying doc to every sink of userID and returns
// how many accepted it.
func (r *Registry) Notify(userID string, doc *model.UserDocument) int {
	return r.Publish(userID, model.UpdateEvent(doc))
}

// NotifyFiles pushes the shared-file metadata of userID to its sinks.
func (r *Registry) NotifyFiles(userID string, meta *model.FileMetadata) int {
	return r.Publish(userID, model.FilesEvent(meta))
}

// Publish delivers event to the sinks registered for userID at the moment of
// the call. Sinks that fail are removed after the pass. A user without
// subscribers is a no-op.
func (r *Registry) Publish(userID string, event model.SyncEvent) int {
	r.mu.RLock()
	set := r.users[userID]
	sinks := make([]Sink, 0, len(set))
	for s := range set {
		sinks = append(sinks, s)
	}
	r.mu.RUnlock()

	if len(sinks) == 0 {
		return 0
	}

	var failed []Sink
	for _, s := range sinks {
		if err := s.Send(event); err != nil {
			failed = append(failed, s)
			metrics.RecordDelivery(string(event.Type), false)
			r.log.Debug("delivery failed",
				zap.String("user_id", userID),
				zap.String("event", string(event.Type)),
				zap.Error(err),
			)
			continue
		}
		metrics.RecordDelivery(string(event.Type), true)
	}

	if len(failed) > 0 {
		r.mu.Lock()
		for _, s := range failed {
			removed, emptied := r.remove(userID, s)
			r.recordRemoval(removed, emptied)
		}
		r.mu.Unlock()
	}

	return len(sinks) - len(failed)
}

// Subscribers returns the number of sinks registered for userID.
func (r *Registry) Subscribers(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// Users returns the number of users with at least one sink.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// remove must be called with mu held.
func (r *Registry) remove(userID string, sink Sink) (removed, emptied bool) {
	set, ok := r.users[userID]
	if !ok {
		return false, false
	}
	if _, ok := set[sink]; !ok {
		return false, false
	}
	delete(set, sink)
	if len(set) == 0 {
		delete(r.users, userID)
		return true, true
	}
	return true, false
}

func (r *Registry) recordRemoval(removed, emptied bool) {
	if removed {
		metrics.SubscribersActive.Dec()
	}
	if emptied {
		metrics.SubscribedUsers.Dec()
	}
}
