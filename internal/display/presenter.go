// Package display drives the reveal of a partner notification on a page view:
// one selection fetch, then one delay timer per view.
package display

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/franzego/partnernotify/internal/models"
	"github.com/franzego/partnernotify/internal/scheduler"
	"go.uber.org/zap"
)

var ErrNilReveal = errors.New("display: nil reveal callback")

// RevealFunc receives the notification once its page view has lasted long enough.
type RevealFunc func(pageID string, n models.Notification)

type Presenter struct {
	fetcher      Fetcher
	defaultDelay float64
	reveal       RevealFunc
	timerOpts    []scheduler.Option
	log          *zap.Logger

	mu      sync.Mutex
	view    uint64
	pageID  string
	pending *models.Notification
	timer   *scheduler.DelayTimer
}

// NewPresenter builds a presenter. reveal runs on the timer's goroutine.
func NewPresenter(f Fetcher, defaultDelaySeconds float64, reveal RevealFunc, log *zap.Logger, opts ...scheduler.Option) (*Presenter, error) {
	if _, err := scheduler.NewSeconds(defaultDelaySeconds, func() {}); err != nil {
		return nil, fmt.Errorf("default delay: %w", err)
	}
	if reveal == nil {
		return nil, ErrNilReveal
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Presenter{
		fetcher:      f,
		defaultDelay: defaultDelaySeconds,
		reveal:       reveal,
		timerOpts:    opts,
		log:          log,
	}, nil
}

// Mount starts a view of pageID. A fetch failure leaves nothing scheduled.
func (p *Presenter) Mount(ctx context.Context, pageID string) error {
	p.mu.Lock()
	p.unmountLocked()
	p.view++
	view := p.view
	p.pageID = pageID
	p.mu.Unlock()

	n, err := p.fetcher.Fetch(ctx, pageID)
	if err != nil {
		p.log.Warn("notification fetch failed, showing nothing",
			zap.String("page", pageID),
			zap.Error(err),
		)
		return err
	}
	if n == nil {
		return nil
	}

	picked := *n
	timer, err := scheduler.NewSeconds(picked.RevealDelay(p.defaultDelay), func() {
		p.fire(view, picked)
	}, p.timerOpts...)
	if err != nil {
		return fmt.Errorf("schedule notification %s: %w", picked.ID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Unmounted or navigated away while the fetch was in flight.
	if p.view != view {
		return nil
	}
	p.pending = &picked
	p.timer = timer
	timer.Start()
	return nil
}

// Navigate tears down the current view and mounts pageID.
func (p *Presenter) Navigate(ctx context.Context, pageID string) error {
	return p.Mount(ctx, pageID)
}

// Unmount cancels any pending reveal.
func (p *Presenter) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unmountLocked()
	p.view++
}

func (p *Presenter) unmountLocked() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = nil
	p.pending = nil
	p.pageID = ""
}

func (p *Presenter) fire(view uint64, n models.Notification) {
	p.mu.Lock()
	if p.view != view {
		p.mu.Unlock()
		return
	}
	pageID := p.pageID
	p.pending = nil
	p.mu.Unlock()

	p.reveal(pageID, n)
}

// Pending returns the notification waiting to be revealed and the seconds
// left on its timer.
func (p *Presenter) Pending() (*models.Notification, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil || p.timer == nil {
		return nil, 0
	}
	n := *p.pending
	return &n, p.timer.RemainingSeconds()
}
