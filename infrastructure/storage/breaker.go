package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"room-chat/contract"
	"room-chat/domain"
	"room-chat/errors"

	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerMessageStore stops hammering a failing message store.
// While the breaker is open every call fails fast with ErrStoreUnavailable.
type BreakerMessageStore struct {
	next contract.IMessageStore
	cb   *gobreaker.CircuitBreaker
	log  *slog.Logger
}

func NewBreakerMessageStore(next contract.IMessageStore, config BreakerConfig, log *slog.Logger) *BreakerMessageStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// A cancelled caller says nothing about the store's health
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
	})
	return &BreakerMessageStore{next: next, cb: cb, log: log}
}

func (b *BreakerMessageStore) Append(ctx context.Context, draft domain.Message) (domain.Message, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Append(ctx, draft)
	})
	if err != nil {
		return domain.Message{}, b.translate(err)
	}
	return result.(domain.Message), nil
}

func (b *BreakerMessageStore) RecentHistory(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.RecentHistory(ctx, roomID, limit)
	})
	if err != nil {
		return nil, b.translate(err)
	}
	return result.([]domain.Message), nil
}

func (b *BreakerMessageStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerMessageStore) translate(err error) error {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		b.log.Debug("Message store call rejected", "breaker", b.cb.Name(), "error", err)
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return err
}
