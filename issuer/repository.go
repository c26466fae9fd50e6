package issuer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/alovak/simple-banking/issuer/models"
	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound          = errors.New("card not found")
	ErrDuplicateKey      = errors.New("card number exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrSameAccount       = errors.New("source and target are the same card")
	ErrBalanceOverflow   = errors.New("balance would overflow")
)

// Store is the durable card record set. Every balance change goes through it.
type Store interface {
	Create(ctx context.Context, card *models.Card) error
	FindByNumber(ctx context.Context, number string) (*models.Card, error)
	FindByNumberAndPin(ctx context.Context, number, pin string) (*models.Card, error)
	BalanceOf(ctx context.Context, number string) (int64, error)
	AddIncome(ctx context.Context, number string, amount int64) error
	Transfer(ctx context.Context, amount int64, source, target string) error
	Delete(ctx context.Context, number string) error
}

// Repository implements Store either in memory (tests, demos) or on top of a
// SQL database (sqlite or postgres).
type Repository struct {
	mu    sync.RWMutex
	cards map[string]*models.Card

	db   *sqlx.DB
	pins PINScheme
}

var _ Store = (*Repository)(nil)

// NewRepository returns an in-memory repository.
func NewRepository(pins PINScheme) *Repository {
	if pins == nil {
		pins = PlainPIN{}
	}
	return &Repository{cards: make(map[string]*models.Card), pins: pins}
}

// NewSQLRepository constructs a db-backed repository. The schema must exist, see Migrate.
func NewSQLRepository(db *sqlx.DB, pins PINScheme) *Repository {
	if pins == nil {
		pins = PlainPIN{}
	}
	return &Repository{db: db, pins: pins}
}

func (r *Repository) Create(ctx context.Context, card *models.Card) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.cards[card.Number]; ok {
			return fmt.Errorf("create %s: %w", card.Number, ErrDuplicateKey)
		}
		cp := *card
		r.cards[card.Number] = &cp
		return nil
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO card(number, pin, balance) VALUES (?, ?, ?)`),
		card.Number, card.PIN, card.Balance)
	if isUniqueViolation(err) {
		return fmt.Errorf("create %s: %w", card.Number, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (r *Repository) FindByNumber(ctx context.Context, number string) (*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		c, ok := r.cards[number]
		if !ok {
			return nil, ErrNotFound
		}
		cp := *c
		return &cp, nil
	}
	var card models.Card
	err := r.db.GetContext(ctx, &card, r.db.Rebind(`SELECT number, pin, balance FROM card WHERE number = ?`), number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select card: %w", err)
	}
	return &card, nil
}

// FindByNumberAndPin is FindByNumber filtered by the PIN. A wrong PIN looks
// exactly like a missing card.
func (r *Repository) FindByNumberAndPin(ctx context.Context, number, pin string) (*models.Card, error) {
	card, err := r.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !r.pins.Match(card.PIN, pin) {
		return nil, ErrNotFound
	}
	return card, nil
}

// BalanceOf returns 0 for a missing card.
func (r *Repository) BalanceOf(ctx context.Context, number string) (int64, error) {
	card, err := r.FindByNumber(ctx, number)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return card.Balance, nil
}

func (r *Repository) AddIncome(ctx context.Context, number string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("income %d: %w", amount, ErrInvalidAmount)
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		c, ok := r.cards[number]
		if !ok {
			return ErrNotFound
		}
		if c.Balance > math.MaxInt64-amount {
			return fmt.Errorf("income %d: %w", amount, ErrBalanceOverflow)
		}
		c.Balance += amount
		return nil
	}
	if err := r.credit(ctx, r.db, number, amount); err != nil {
		return fmt.Errorf("add income: %w", err)
	}
	return nil
}

// credit adds amount to number unless the result would not fit in an int64.
func (r *Repository) credit(ctx context.Context, q sqlx.ExtContext, number string, amount int64) error {
	res, err := q.ExecContext(ctx, r.db.Rebind(`UPDATE card SET balance = balance + ? WHERE number = ? AND balance <= ?`),
		amount, number, math.MaxInt64-amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	exists, err := r.exists(ctx, q, number)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrBalanceOverflow
}

func (r *Repository) exists(ctx context.Context, q sqlx.QueryerContext, number string) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, r.db.Rebind(`SELECT COUNT(1) FROM card WHERE number = ?`), number); err != nil {
		return false, fmt.Errorf("probe card: %w", err)
	}
	return count > 0, nil
}

// Transfer credits target and debits source as one unit. On any error neither
// balance changes.
func (r *Repository) Transfer(ctx context.Context, amount int64, source, target string) error {
	if amount < 0 {
		return fmt.Errorf("transfer %d: %w", amount, ErrInvalidAmount)
	}
	if source == target {
		return ErrSameAccount
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		src, ok1 := r.cards[source]
		dst, ok2 := r.cards[target]
		if !ok1 || !ok2 {
			return ErrNotFound
		}
		if src.Balance < amount {
			return ErrInsufficientFunds
		}
		if dst.Balance > math.MaxInt64-amount {
			return ErrBalanceOverflow
		}
		dst.Balance += amount
		src.Balance -= amount
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	if err := r.credit(ctx, tx, target, amount); err != nil {
		return fmt.Errorf("credit target: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE card SET balance = balance - ? WHERE number = ? AND balance >= ?`), amount, source, amount)
	if err != nil {
		return fmt.Errorf("debit source: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("debit source: %w", err)
	} else if n == 0 {
		exists, err := r.exists(ctx, tx, source)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientFunds
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

// Delete removes the card for good. Deleting a missing card is not an error.
func (r *Repository) Delete(ctx context.Context, number string) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.cards, number)
		return nil
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM card WHERE number = ?`), number); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(se.Error(), "UNIQUE")
		}
	}
	return false
}
