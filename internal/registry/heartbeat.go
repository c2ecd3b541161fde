package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/LoganGrasby/freza/internal/metrics"
)

// joinTimeout bounds how long Stop waits for the loop goroutine to exit.
const joinTimeout = 5 * time.Second

// HeartbeatLoop periodically refreshes one instance's liveness timestamp
// until stopped. A tick that fails is logged and swallowed; heartbeat
// trouble must never crash or block the foreground work.
type HeartbeatLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartHeartbeat launches the loop for the given instance at the registry's
// configured interval.
func (r *Registry) StartHeartbeat(instanceID string) *HeartbeatLoop {
	ctx, cancel := context.WithCancel(context.Background())
	hb := &HeartbeatLoop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(hb.done)
		ticker := time.NewTicker(r.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Heartbeat(ctx, instanceID); err != nil {
					if ctx.Err() == nil {
						slog.Warn("heartbeat tick failed", "instance_id", instanceID, "error", err)
					}
					continue
				}
				metrics.IncHeartbeat()
			}
		}
	}()
	return hb
}

// Stop signals the loop to exit before its next tick and waits, bounded,
// for the goroutine to finish. Safe to call more than once.
func (hb *HeartbeatLoop) Stop() {
	hb.cancel()
	select {
	case <-hb.done:
	case <-time.After(joinTimeout):
		slog.Warn("heartbeat loop did not exit within join timeout")
	}
}
