// Package menu is the text front end of the issuer. It only parses input and
// prints messages; every decision is made by issuer.Session.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alovak/simple-banking/internal/cardgen"
	"github.com/alovak/simple-banking/issuer"
	"github.com/alovak/simple-banking/issuer/models"
)

// CardIssuer creates new cards.
type CardIssuer interface {
	CreateCard(ctx context.Context) (*models.Card, error)
}

// SessionFactory hands out logged out sessions.
type SessionFactory interface {
	NewSession() *issuer.Session
}

// action runs one menu command. done ends the whole program.
type action func(ctx context.Context, m *Menu) (done bool, err error)

type item struct {
	key   string
	title string
	run   action
}

type table struct {
	items []item
	byKey map[string]action
}

func newTable(items ...item) table {
	t := table{items: items, byKey: make(map[string]action, len(items))}
	for _, it := range items {
		t.byKey[it.key] = it.run
	}
	return t
}

var (
	startMenu = newTable(
		item{"1", "Create an account", createAccount},
		item{"2", "Log into account", logIn},
		item{"0", "Exit", exit},
	)
	accountMenu = newTable(
		item{"1", "Balance", balance},
		item{"2", "Add income", addIncome},
		item{"3", "Do transfer", transfer},
		item{"4", "Close account", closeAccount},
		item{"5", "Log out", logOut},
		item{"0", "Exit", exit},
	)
)

var transferMessages = map[models.TransferResult]string{
	models.Success:             "Success!",
	models.CardNumberError:     "Probably you made a mistake in the card number. Please try again!",
	models.SameAccountError:    "You can't transfer money to the same account!",
	models.CardNotExistsError:  "Such a card does not exist.",
	models.InvalidAmountError:  "Invalid amount!",
	models.NotEnoughMoneyError: "Not enough money!",
}

// errEOF is returned by readLine once input is exhausted.
var errEOF = errors.New("end of input")

type Menu struct {
	in       *bufio.Scanner
	out      io.Writer
	issuer   CardIssuer
	sessions SessionFactory
	session  *issuer.Session
}

func New(in io.Reader, out io.Writer, cards CardIssuer, sessions SessionFactory) *Menu {
	return &Menu{
		in:       bufio.NewScanner(in),
		out:      out,
		issuer:   cards,
		sessions: sessions,
		session:  sessions.NewSession(),
	}
}

// Run loops until the user exits or input ends. Only storage failures are
// returned.
func (m *Menu) Run(ctx context.Context) error {
	for {
		t := startMenu
		if m.session.State() == issuer.LoggedIn {
			t = accountMenu
		}
		for _, it := range t.items {
			m.println(it.key + ". " + it.title)
		}
		choice, err := m.readLine()
		if errors.Is(err, errEOF) {
			_, err = exit(ctx, m)
			return err
		}
		run, ok := t.byKey[choice]
		if !ok {
			m.println("\nUnknown option.\n")
			continue
		}
		done, err := run(ctx, m)
		if errors.Is(err, errEOF) {
			_, err = exit(ctx, m)
			return err
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func createAccount(ctx context.Context, m *Menu) (bool, error) {
	card, err := m.issuer.CreateCard(ctx)
	if err != nil {
		return false, err
	}
	m.printf("\nYour card has been created\nYour card number:\n%s\nYour card PIN:\n%s\n\n", card.Number, card.PIN)
	return false, nil
}

func logIn(ctx context.Context, m *Menu) (bool, error) {
	m.println("\nEnter your card number:")
	number, err := m.readLine()
	if err != nil {
		return false, err
	}
	m.println("Enter your PIN:")
	pin, err := m.readLine()
	if err != nil {
		return false, err
	}
	ok, err := m.session.Login(ctx, cardgen.NormalizePAN(number), pin)
	if err != nil {
		return false, err
	}
	if !ok {
		m.println("\nWrong card number or PIN!\n")
		return false, nil
	}
	m.println("\nYou have successfully logged in!\n")
	return false, nil
}

func balance(ctx context.Context, m *Menu) (bool, error) {
	b, err := m.session.Balance(ctx)
	if err != nil {
		return false, err
	}
	m.printf("\nBalance: %d\n\n", b)
	return false, nil
}

func addIncome(ctx context.Context, m *Menu) (bool, error) {
	m.println("\nEnter income:")
	amount, ok, err := m.readAmount()
	if err != nil || !ok {
		return false, err
	}
	err = m.session.AddIncome(ctx, amount)
	switch {
	case errors.Is(err, issuer.ErrInvalidAmount):
		m.println("The amount must be a positive number.\n")
		return false, nil
	case errors.Is(err, issuer.ErrBalanceOverflow):
		m.println("The balance can not hold that much money.\n")
		return false, nil
	case errors.Is(err, issuer.ErrNotFound):
		// closed from somewhere else while logged in
		m.session.Logout()
		m.println("\nThe account does not exist anymore. You have been logged out.\n")
		return false, nil
	case err != nil:
		return false, err
	}
	m.println("Income was added!\n")
	return false, nil
}

func transfer(ctx context.Context, m *Menu) (bool, error) {
	m.println("\nTransfer\nEnter card number:")
	target, err := m.readLine()
	if err != nil {
		return false, err
	}
	target = cardgen.NormalizePAN(target)
	res, err := m.session.CheckTarget(ctx, target)
	if err != nil {
		return false, err
	}
	if res != models.Success {
		m.println(transferMessages[res] + "\n")
		return false, nil
	}
	m.println("Enter how much money you want to transfer:")
	amount, ok, err := m.readAmount()
	if err != nil || !ok {
		return false, err
	}
	res, err = m.session.Transfer(ctx, target, amount)
	if err != nil {
		return false, err
	}
	m.println(transferMessages[res] + "\n")
	return false, nil
}

func closeAccount(ctx context.Context, m *Menu) (bool, error) {
	if err := m.session.CloseAccount(ctx); err != nil {
		return false, err
	}
	m.println("\nThe account has been closed!\n")
	return false, nil
}

func logOut(_ context.Context, m *Menu) (bool, error) {
	m.session.Logout()
	m.println("\nYou have successfully logged out!\n")
	return false, nil
}

func exit(_ context.Context, m *Menu) (bool, error) {
	m.session.Logout()
	m.println("\nBye!")
	return true, nil
}

func (m *Menu) readLine() (string, error) {
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errEOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

// readAmount reads a whole number; ok is false when the input was not one.
func (m *Menu) readAmount() (int64, bool, error) {
	line, err := m.readLine()
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		m.println("Please enter a whole number.\n")
		return 0, false, nil
	}
	return n, true, nil
}

func (m *Menu) println(s string) { fmt.Fprintln(m.out, s) }

func (m *Menu) printf(format string, a ...any) { fmt.Fprintf(m.out, format, a...) }
