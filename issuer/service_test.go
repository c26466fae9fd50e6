package issuer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alovak/simple-banking/internal/cardgen"
	"github.com/alovak/simple-banking/issuer"
	"github.com/alovak/simple-banking/issuer/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateCard(t *testing.T) {
	ctx := context.Background()
	repo := issuer.NewRepository(nil)
	svc := issuer.NewService(testLogger, repo, nil, issuer.DefaultConfig())

	card, err := svc.CreateCard(ctx)
	require.NoError(t, err)
	require.Len(t, card.Number, 16)
	require.True(t, strings.HasPrefix(card.Number, "400000"))
	require.True(t, cardgen.Validate(card.Number))
	require.Len(t, card.PIN, 4)
	require.True(t, cardgen.IsDigits(card.PIN))
	require.Zero(t, card.Balance)

	stored, err := repo.FindByNumberAndPin(ctx, card.Number, card.PIN)
	require.NoError(t, err)
	require.Zero(t, stored.Balance)
}

func TestCreateCardRetriesCollision(t *testing.T) {
	ctx := context.Background()
	repo := issuer.NewRepository(nil)
	seed(t, repo, cardA, 0)

	svc := issuer.NewService(testLogger, repo, nil, issuer.DefaultConfig())
	numbers := []string{cardA, cardA, cardB}
	calls := 0
	svc.SetGenerator(func(_, _, _ int64) (string, error) {
		n := numbers[calls]
		calls++
		return n, nil
	})

	card, err := svc.CreateCard(ctx)
	require.NoError(t, err)
	require.Equal(t, cardB, card.Number)
	require.Equal(t, 3, calls)
}

func TestCreateCardGivesUp(t *testing.T) {
	repo := issuer.NewRepository(nil)
	seed(t, repo, cardA, 0)

	cfg := issuer.DefaultConfig()
	cfg.CreateAttempts = 3
	svc := issuer.NewService(testLogger, repo, nil, cfg)
	calls := 0
	svc.SetGenerator(func(_, _, _ int64) (string, error) {
		calls++
		return cardA, nil
	})

	_, err := svc.CreateCard(context.Background())
	require.ErrorIs(t, err, issuer.ErrDuplicateKey)
	require.Equal(t, 3, calls)
}

func TestCreateCardInvalidRange(t *testing.T) {
	cfg := issuer.DefaultConfig()
	cfg.MinAccountID, cfg.MaxAccountID = 10, 1
	svc := issuer.NewService(testLogger, issuer.NewRepository(nil), nil, cfg)

	_, err := svc.CreateCard(context.Background())
	require.ErrorIs(t, err, cardgen.ErrInvalidRange)
}

func TestCreateCardStorageFailureIsNotRetried(t *testing.T) {
	boom := errors.New("read-only file system")
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.AnythingOfType("*models.Card")).Return(boom).Once()

	svc := issuer.NewService(testLogger, store, nil, issuer.DefaultConfig())
	_, err := svc.CreateCard(context.Background())
	require.ErrorIs(t, err, boom)
	store.AssertNumberOfCalls(t, "Create", 1)
}

func TestCreateCardBcrypt(t *testing.T) {
	ctx := context.Background()
	pins := issuer.BcryptPIN{Cost: 4}
	store := &mockStore{}
	var stored *models.Card
	store.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*models.Card) }).
		Return(nil)

	svc := issuer.NewService(testLogger, store, pins, issuer.DefaultConfig())
	card, err := svc.CreateCard(ctx)
	require.NoError(t, err)

	require.NotEqual(t, card.PIN, stored.PIN)
	require.True(t, pins.Match(stored.PIN, card.PIN))
}
