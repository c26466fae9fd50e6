package issuer

import (
	"context"
	"errors"
	"fmt"

	"github.com/alovak/simple-banking/internal/cardgen"
	"github.com/alovak/simple-banking/issuer/models"
	"golang.org/x/exp/slog"
)

var ErrNotLoggedIn = errors.New("not logged in")

type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "LOGGED_IN"
	}
	return "LOGGED_OUT"
}

// Accounts hands out sessions over a single store.
type Accounts struct {
	store  Store
	logger *slog.Logger
}

func NewAccounts(logger *slog.Logger, store Store) *Accounts {
	return &Accounts{store: store, logger: logger.With(slog.String("component", "accounts"))}
}

// NewSession returns a logged out session.
func (a *Accounts) NewSession() *Session {
	return &Session{store: a.store, logger: a.logger}
}

// resume rebuilds a logged in session for a card number that was already
// authenticated, e.g. behind an HTTP session token.
func (a *Accounts) resume(number string) *Session {
	s := a.NewSession()
	s.number = number
	s.state = LoggedIn
	return s
}

// Session is the state of one login, from Login until Logout or CloseAccount.
// A Session is not safe for concurrent use.
type Session struct {
	store  Store
	logger *slog.Logger

	state  State
	number string
}

func (s *Session) State() State { return s.state }

// CardNumber is the logged in card, or "" when logged out.
func (s *Session) CardNumber() string { return s.number }

// Login reports whether number and pin match a stored card. A mismatch is not
// an error; storage failures are.
func (s *Session) Login(ctx context.Context, number, pin string) (bool, error) {
	card, err := s.store.FindByNumberAndPin(ctx, number, pin)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("login: %w", err)
	}
	s.number = card.Number
	s.state = LoggedIn
	s.logger.Info("logged in", slog.String("card", cardgen.MaskPAN(card.Number)))
	return true, nil
}

func (s *Session) Logout() {
	s.number = ""
	s.state = LoggedOut
}

func (s *Session) Balance(ctx context.Context) (int64, error) {
	if s.state != LoggedIn {
		return 0, ErrNotLoggedIn
	}
	return s.store.BalanceOf(ctx, s.number)
}

// AddIncome deposits a positive amount. If the card disappeared underneath the
// session the store's ErrNotFound is returned, and ErrBalanceOverflow when the
// balance can not grow by amount.
func (s *Session) AddIncome(ctx context.Context, amount int64) error {
	if s.state != LoggedIn {
		return ErrNotLoggedIn
	}
	if amount <= 0 {
		return fmt.Errorf("income %d: %w", amount, ErrInvalidAmount)
	}
	if err := s.store.AddIncome(ctx, s.number, amount); err != nil {
		return fmt.Errorf("add income: %w", err)
	}
	return nil
}

// CheckTarget runs the checks on a transfer target that do not depend on the
// amount. It returns Success when the target is usable.
func (s *Session) CheckTarget(ctx context.Context, target string) (models.TransferResult, error) {
	if s.state != LoggedIn {
		return 0, ErrNotLoggedIn
	}
	if !cardgen.Validate(target) {
		return models.CardNumberError, nil
	}
	if target == s.number {
		return models.SameAccountError, nil
	}
	_, err := s.store.FindByNumber(ctx, target)
	if errors.Is(err, ErrNotFound) {
		return models.CardNotExistsError, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find target: %w", err)
	}
	return models.Success, nil
}

// Transfer moves amount from the logged in card to target. Validation failures
// come back as a TransferResult; only storage failures are errors. A zero
// amount succeeds without changing anything. An amount the target can not
// hold without overflowing is an InvalidAmountError.
func (s *Session) Transfer(ctx context.Context, target string, amount int64) (models.TransferResult, error) {
	res, err := s.CheckTarget(ctx, target)
	if err != nil || res != models.Success {
		return res, err
	}
	if amount < 0 {
		return models.InvalidAmountError, nil
	}
	balance, err := s.store.BalanceOf(ctx, s.number)
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	if amount > balance {
		return models.NotEnoughMoneyError, nil
	}

	err = s.store.Transfer(ctx, amount, s.number, target)
	switch {
	case err == nil:
		s.logger.Info("transfer done",
			slog.String("from", cardgen.MaskPAN(s.number)),
			slog.String("to", cardgen.MaskPAN(target)),
			slog.Int64("amount", amount))
		return models.Success, nil
	case errors.Is(err, ErrInsufficientFunds):
		return models.NotEnoughMoneyError, nil
	case errors.Is(err, ErrNotFound):
		return models.CardNotExistsError, nil
	case errors.Is(err, ErrBalanceOverflow):
		return models.InvalidAmountError, nil
	default:
		return 0, fmt.Errorf("transfer: %w", err)
	}
}

// CloseAccount deletes the logged in card and logs out.
func (s *Session) CloseAccount(ctx context.Context) error {
	if s.state != LoggedIn {
		return ErrNotLoggedIn
	}
	if err := s.store.Delete(ctx, s.number); err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	s.logger.Info("account closed", slog.String("card", cardgen.MaskPAN(s.number)))
	s.Logout()
	return nil
}
