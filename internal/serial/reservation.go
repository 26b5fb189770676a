package serial

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"smartbin-backend/internal/models"
	"smartbin-backend/internal/store"
)

// Prefix of every issued bin serial.
const Prefix = "SDB-"

// DefaultMaxAttempts bounds reservation retries by attempt count rather
// than wall clock, keeping behavior deterministic under test.
const DefaultMaxAttempts = 5

var (
	// ErrAlreadyReserved means the candidate serial lost the race. Expected
	// under contention; retried locally and never shown to the end user.
	ErrAlreadyReserved = errors.New("serial already reserved")

	// ErrExhausted means the attempt budget ran out. Surfaced as a hard
	// failure requiring a user retry.
	ErrExhausted = errors.New("serial reservation attempts exhausted")
)

// Config tunes the reservation service. The zero value is production-ready.
type Config struct {
	// Generator produces candidate serials. Defaults to Prefix plus four
	// random digits — no cryptographic requirement, just unbiased enough to
	// avoid hot-looping on the same candidates.
	Generator func() string

	MaxAttempts int

	// AllowUnsynchronized enables the degraded fallback: when the budget is
	// exhausted, create the bin without the reservation race protection.
	// Logged loudly; duplicate serials become possible while it is active.
	AllowUnsynchronized bool

	Now func() time.Time
}

// Service issues unique bin serials. The serials collection is the sole
// synchronization point: a bin and its reservation are born in the same
// transaction, or neither is.
type Service struct {
	store store.Store
	cfg   Config
	now   func() time.Time
}

func NewService(st store.Store, cfg Config) *Service {
	if cfg.Generator == nil {
		cfg.Generator = DefaultGenerator
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, cfg: cfg, now: now}
}

// DefaultGenerator returns Prefix followed by four random digits.
func DefaultGenerator() string {
	return fmt.Sprintf("%s%04d", Prefix, rand.IntN(10000))
}

// Reserve atomically creates a bin and its serial reservation under a fresh
// serial, retrying with new candidates while reservations collide.
func (s *Service) Reserve(ctx context.Context, bin models.Bin, actorID string) (models.Bin, error) {
	if err := bin.Validate(); err != nil {
		return models.Bin{}, err
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		candidate := s.cfg.Generator()
		reserved, err := s.tryReserve(ctx, candidate, bin, actorID)
		if err == nil {
			return reserved, nil
		}
		if errors.Is(err, ErrAlreadyReserved) {
			// Contention is expected; grab a new candidate and go again.
			continue
		}
		lastErr = err
	}

	if s.cfg.AllowUnsynchronized {
		return s.reserveUnsynchronized(ctx, bin, actorID)
	}
	if lastErr != nil {
		return models.Bin{}, fmt.Errorf("%w: last attempt failed: %v", ErrExhausted, lastErr)
	}
	return models.Bin{}, ErrExhausted
}

func (s *Service) tryReserve(ctx context.Context, candidate string, bin models.Bin, actorID string) (models.Bin, error) {
	prepared := s.prepare(candidate, bin, actorID)
	reservation := models.SerialReservation{
		BinID:      candidate,
		ReservedAt: prepared.CreatedAt,
		Archived:   false,
		CreatedBy:  actorID,
	}

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		_, exists, err := tx.Get(models.CollectionSerials, candidate)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyReserved
		}
		tx.Set(models.CollectionBins, candidate, prepared.Encode(), false)
		tx.Set(models.CollectionSerials, candidate, reservation.Encode(), false)
		return nil
	})
	if err != nil {
		return models.Bin{}, err
	}
	return prepared, nil
}

// reserveUnsynchronized creates the bin without the transactional race
// check. Degraded mode only.
func (s *Service) reserveUnsynchronized(ctx context.Context, bin models.Bin, actorID string) (models.Bin, error) {
	candidate := s.cfg.Generator()
	log.Printf("⚠️  Serial reservation budget exhausted, creating %s without duplicate protection (best effort)", candidate)

	prepared := s.prepare(candidate, bin, actorID)
	reservation := models.SerialReservation{
		BinID:      candidate,
		ReservedAt: prepared.CreatedAt,
		Archived:   false,
		CreatedBy:  actorID,
	}
	if err := s.store.Set(ctx, models.CollectionBins, candidate, prepared.Encode(), false); err != nil {
		return models.Bin{}, err
	}
	if err := s.store.Set(ctx, models.CollectionSerials, candidate, reservation.Encode(), false); err != nil {
		return models.Bin{}, err
	}
	return prepared, nil
}

func (s *Service) prepare(candidate string, bin models.Bin, actorID string) models.Bin {
	bin.Serial = candidate
	bin.CreatedAt = s.now()
	bin.CreatedBy = actorID
	if bin.Status == "" {
		bin.Status = models.StatusAvailable
	}
	return bin
}
