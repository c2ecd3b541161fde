// Package registry tracks every running freza invocation so concurrent
// instances can observe who else is active, doing what, since when. The
// shared state is a single JSON document coordinated purely through the
// filesystem; liveness comes from heartbeats, and dead entries are pruned
// on read rather than by a background sweeper.
package registry

import (
	"context"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/LoganGrasby/freza/internal/jsonstore"
)

// Instance statuses. Absence from the registry means finished and cleaned
// up.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// maxTriggerLen bounds the stored trigger excerpt.
const maxTriggerLen = 500

// Instance is one running invocation that has registered itself. PID is
// diagnostic only; no process signals another instance through it.
type Instance struct {
	InstanceID     string  `json:"instance_id"`
	PID            int     `json:"pid"`
	Mode           string  `json:"mode"`
	AgentName      string  `json:"agent_name"`
	ChannelName    string  `json:"channel_name,omitempty"`
	TriggerMessage string  `json:"trigger_message,omitempty"`
	StartedAt      float64 `json:"started_at"`
	LastHeartbeat  float64 `json:"last_heartbeat"`
	Status         string  `json:"status"`
}

// Uptime returns how long the instance has been running.
func (i Instance) Uptime(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, int64(i.StartedAt*float64(time.Second))))
}

// Registry mediates all access to the shared instance document. Every
// mutation is one locked transaction, so concurrent registrations from
// unrelated processes serialize with no lost updates.
type Registry struct {
	store             *jsonstore.Store[[]Instance]
	heartbeatInterval time.Duration
	staleThreshold    time.Duration

	now func() time.Time
}

// New creates a registry over the document at path.
func New(path string, heartbeatInterval, staleThreshold time.Duration) *Registry {
	return &Registry{
		store:             jsonstore.New[[]Instance](path),
		heartbeatInterval: heartbeatInterval,
		staleThreshold:    staleThreshold,
		now:               time.Now,
	}
}

func (r *Registry) epoch() float64 {
	return float64(r.now().UnixNano()) / float64(time.Second)
}

// newInstanceID returns 16 hex characters of a fresh uuid.
func newInstanceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// truncateRunes bounds s to at most n characters without splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Register appends a new instance record and returns it. Concurrent
// registrations both succeed; the store transaction serializes appends.
func (r *Registry) Register(ctx context.Context, mode, agentName, channelName, triggerMessage string) (Instance, error) {
	triggerMessage = truncateRunes(triggerMessage, maxTriggerLen)
	now := r.epoch()
	inst := Instance{
		InstanceID:     newInstanceID(),
		PID:            os.Getpid(),
		Mode:           mode,
		AgentName:      agentName,
		ChannelName:    channelName,
		TriggerMessage: triggerMessage,
		StartedAt:      now,
		LastHeartbeat:  now,
		Status:         StatusRunning,
	}
	_, err := r.store.Transact(ctx, func(entries []Instance) ([]Instance, error) {
		return append(entries, inst), nil
	})
	if err != nil {
		return Instance{}, err
	}
	return inst, nil
}

// Heartbeat refreshes the liveness timestamp of the identified instance.
// A missing record is a no-op, not an error: the record may already have
// been pruned or deregistered by a racing reader.
func (r *Registry) Heartbeat(ctx context.Context, instanceID string) error {
	now := r.epoch()
	_, err := r.store.Transact(ctx, func(entries []Instance) ([]Instance, error) {
		for i := range entries {
			if entries[i].InstanceID == instanceID {
				entries[i].LastHeartbeat = now
			}
		}
		return entries, nil
	})
	return err
}

// GetActive prunes every record whose heartbeat is older than the stale
// threshold, persists the pruned list, and returns the survivors. Folding
// the prune into every read makes cleanup self-healing after crashes with
// no separate sweeper. Order is insertion order and carries no meaning.
func (r *Registry) GetActive(ctx context.Context) ([]Instance, error) {
	now := r.epoch()
	return r.store.Transact(ctx, func(entries []Instance) ([]Instance, error) {
		kept := entries[:0]
		for _, e := range entries {
			if now-e.LastHeartbeat < r.staleThreshold.Seconds() {
				kept = append(kept, e)
			}
		}
		return kept, nil
	})
}

// Deregister removes the instance when it finished cleanly. A failed
// instance keeps its record with status mutated, leaving the failure
// visible to operators until the staleness window prunes it.
func (r *Registry) Deregister(ctx context.Context, instanceID, status string) error {
	_, err := r.store.Transact(ctx, func(entries []Instance) ([]Instance, error) {
		if status == StatusFinished {
			kept := entries[:0]
			for _, e := range entries {
				if e.InstanceID != instanceID {
					kept = append(kept, e)
				}
			}
			return kept, nil
		}
		for i := range entries {
			if entries[i].InstanceID == instanceID {
				entries[i].Status = status
			}
		}
		return entries, nil
	})
	return err
}
