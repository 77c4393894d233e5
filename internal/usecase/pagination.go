package usecase

import (
	"context"
	"sync"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/metrics"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
)

const DefaultPageSize = 25

// Pagination backfills history for one room, one page at a time. At most
// one fetch is in flight; overlapping calls are dropped.
type Pagination struct {
	roomID   string
	pageSize int
	store    *MessageStore
	chatRepo repository.ChatRepository

	mu             sync.Mutex
	loading        bool
	loadingInitial bool
	allLoaded      bool
	generation     uint64
}

func NewPagination(roomID string, pageSize int, store *MessageStore, chatRepo repository.ChatRepository) *Pagination {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pagination{
		roomID:   roomID,
		pageSize: pageSize,
		store:    store,
		chatRepo: chatRepo,
	}
}

// LoadInitial fetches the newest page and replaces the store contents. It
// supersedes any LoadMore still in flight.
func (p *Pagination) LoadInitial(ctx context.Context) error {
	p.mu.Lock()
	if p.loadingInitial {
		p.mu.Unlock()
		return nil
	}
	p.generation++
	gen := p.generation
	p.loading = true
	p.loadingInitial = true
	p.mu.Unlock()

	p.store.BeginReload()
	page, err := p.chatRepo.FetchPage(ctx, p.roomID, 0, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadingInitial = false
	if gen == p.generation {
		p.loading = false
	}
	if err != nil {
		p.store.CancelReload()
		metrics.PageFetches.WithLabelValues("error").Inc()
		return errors.PageFetchFailed(err)
	}
	metrics.PageFetches.WithLabelValues("ok").Inc()

	p.store.ReplaceAll(page)
	p.allLoaded = len(page) < p.pageSize
	return nil
}

// LoadMore fetches the next older page. It reports whether a fetch was
// actually made; calls made while loading or after the end are no-ops.
func (p *Pagination) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.loading || p.allLoaded {
		p.mu.Unlock()
		return false, nil
	}
	p.loading = true
	gen := p.generation
	offset := p.store.ConfirmedCount()
	p.mu.Unlock()

	page, err := p.chatRepo.FetchPage(ctx, p.roomID, offset, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		// a newer LoadInitial owns the store now
		return false, nil
	}
	p.loading = false
	if err != nil {
		metrics.PageFetches.WithLabelValues("error").Inc()
		return false, errors.PageFetchFailed(err)
	}
	metrics.PageFetches.WithLabelValues("ok").Inc()

	p.store.PageAppend(page)
	if len(page) < p.pageSize {
		p.allLoaded = true
	}
	return true, nil
}

func (p *Pagination) AllLoaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allLoaded
}

func (p *Pagination) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}
