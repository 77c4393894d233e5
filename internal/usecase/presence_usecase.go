package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

const DefaultHeartbeatInterval = 30 * time.Second

// PresenceUseCase tracks the local user on the shared presence channel and
// mirrors the set of online users. It lives for the whole process.
type PresenceUseCase struct {
	userID   string
	channel  repository.PresenceChannel
	notifier service.Notifier
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	status    entity.PresenceStatus
	online    map[string]entity.PresenceState
	stopBeat  context.CancelFunc
	wg        sync.WaitGroup
	unsubSync repository.Unsubscribe
	unsubDrop repository.Unsubscribe
}

func NewPresenceUseCase(userID string, channel repository.PresenceChannel, notifier service.Notifier, interval time.Duration) *PresenceUseCase {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	uc := &PresenceUseCase{
		userID:   userID,
		channel:  channel,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
		status:   entity.PresenceOffline,
		online:   make(map[string]entity.PresenceState),
	}
	uc.unsubSync = channel.OnSync(uc.handleSync)
	uc.unsubDrop = channel.OnDisconnect(uc.teardown)
	return uc
}

// Foreground starts the heartbeat, which tracks the user immediately and
// then every interval. The user counts as online after the first successful
// track. Calling it while already running is a no-op.
func (uc *PresenceUseCase) Foreground(ctx context.Context) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.stopBeat != nil {
		return
	}

	beatCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	uc.stopBeat = cancel
	uc.wg.Add(1)
	go uc.heartbeat(beatCtx)
}

// Background stops the heartbeat and untracks the user.
func (uc *PresenceUseCase) Background(ctx context.Context) {
	uc.mu.Lock()
	stop := uc.stopBeat
	uc.stopBeat = nil
	uc.status = entity.PresenceOffline
	uc.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	uc.wg.Wait()

	if err := uc.channel.Untrack(ctx); err != nil {
		logger.Warn("Presence untrack Error: user=%s: %v", uc.userID, err)
	}
	logger.Info("Presence: user %s offline", uc.userID)
}

func (uc *PresenceUseCase) Close(ctx context.Context) {
	uc.Background(ctx)
	if uc.unsubSync != nil {
		uc.unsubSync()
	}
	if uc.unsubDrop != nil {
		uc.unsubDrop()
	}
}

func (uc *PresenceUseCase) Status() entity.PresenceStatus {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.status
}

func (uc *PresenceUseCase) IsOnline(userID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, ok := uc.online[userID]
	return ok
}

// Online returns the sorted ids of every user currently online.
func (uc *PresenceUseCase) Online() []string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.onlineIDsLocked()
}

func (uc *PresenceUseCase) heartbeat(ctx context.Context) {
	defer uc.wg.Done()

	ticker := time.NewTicker(uc.interval)
	defer ticker.Stop()

	uc.track(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uc.track(ctx)
		}
	}
}

func (uc *PresenceUseCase) track(ctx context.Context) {
	err := uc.channel.Track(ctx, entity.PresenceState{
		UserID:   uc.userID,
		OnlineAt: uc.now().UTC(),
	})
	if err != nil {
		logger.Warn("Presence heartbeat Error: user=%s: %v", uc.userID, err)
		uc.teardown()
		return
	}

	uc.mu.Lock()
	becameOnline := uc.stopBeat != nil && uc.status == entity.PresenceOffline
	if becameOnline {
		uc.status = entity.PresenceOnline
	}
	uc.mu.Unlock()
	if becameOnline {
		logger.Info("Presence: user %s online", uc.userID)
	}
}

// teardown marks the user offline and forgets the online set after the
// channel dropped. A running heartbeat brings the user back online on its
// next successful track.
func (uc *PresenceUseCase) teardown() {
	uc.mu.Lock()
	wasOnline := uc.status == entity.PresenceOnline
	hadPeers := len(uc.online) > 0
	uc.status = entity.PresenceOffline
	uc.online = make(map[string]entity.PresenceState)
	uc.mu.Unlock()

	if wasOnline {
		logger.Info("Presence: user %s offline, channel dropped", uc.userID)
	}
	if wasOnline || hadPeers {
		uc.notifier.PresenceChanged([]string{})
	}
}

func (uc *PresenceUseCase) handleSync(states []entity.PresenceState) {
	uc.mu.Lock()
	uc.online = make(map[string]entity.PresenceState, len(states))
	for _, s := range states {
		uc.online[s.UserID] = s
	}
	ids := uc.onlineIDsLocked()
	uc.mu.Unlock()

	uc.notifier.PresenceChanged(ids)
}

func (uc *PresenceUseCase) onlineIDsLocked() []string {
	ids := make([]string, 0, len(uc.online))
	for id := range uc.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
