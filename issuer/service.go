package issuer

import (
	"context"
	"errors"
	"fmt"

	"github.com/alovak/simple-banking/internal/cardgen"
	"github.com/alovak/simple-banking/issuer/models"
	"golang.org/x/exp/slog"
)

// Service issues new cards.
type Service struct {
	store  Store
	pins   PINScheme
	cfg    *Config
	logger *slog.Logger

	// generate is swapped in tests to force number collisions.
	generate func(prefix, minAccountID, maxAccountID int64) (string, error)
}

func NewService(logger *slog.Logger, store Store, pins PINScheme, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if pins == nil {
		pins = PlainPIN{}
	}
	return &Service{
		store:    store,
		pins:     pins,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "service")),
		generate: cardgen.Generate,
	}
}

// CreateCard generates a number and a PIN and persists the card with a zero
// balance. Number collisions are retried up to cfg.CreateAttempts times. The
// returned card carries the clear PIN so it can be shown once.
func (s *Service) CreateCard(ctx context.Context) (*models.Card, error) {
	pin, err := cardgen.RandomDigits(s.cfg.PINLength)
	if err != nil {
		return nil, fmt.Errorf("generate pin: %w", err)
	}
	sealed, err := s.pins.Seal(pin)
	if err != nil {
		return nil, err
	}

	attempts := s.cfg.CreateAttempts
	if attempts <= 0 {
		attempts = 5
	}
	for attempt := 0; attempt < attempts; attempt++ {
		number, err := s.generate(s.cfg.BINPrefix, s.cfg.MinAccountID, s.cfg.MaxAccountID)
		if err != nil {
			return nil, fmt.Errorf("generate card number: %w", err)
		}
		err = s.store.Create(ctx, &models.Card{Number: number, PIN: sealed})
		if err == nil {
			s.logger.Info("card created", slog.String("card", cardgen.MaskPAN(number)))
			return &models.Card{Number: number, PIN: pin}, nil
		}
		if errors.Is(err, ErrDuplicateKey) {
			s.logger.Info("card number collision, retrying", slog.Int("attempt", attempt+1))
			continue
		}
		s.logger.Error("creating card", "err", err)
		return nil, fmt.Errorf("creating card: %w", err)
	}
	return nil, fmt.Errorf("could not create unique card after %d attempts: %w", attempts, ErrDuplicateKey)
}
