package issuer

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/alovak/simple-banking/internal/cardgen"
	"github.com/alovak/simple-banking/issuer/models"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

// API is a HTTP API for the issuer service
type API struct {
	// mu serializes requests into the core, which is single session per call.
	mu       sync.Mutex
	issuer   *Service
	accounts *Accounts
	sessions SessionStore
	logger   *slog.Logger
}

func NewAPI(logger *slog.Logger, issuer *Service, accounts *Accounts, sessions SessionStore) *API {
	return &API{
		issuer:   issuer,
		accounts: accounts,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "api")),
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/cards", a.createCard)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.login)
		r.Route("/{token}", func(r chi.Router) {
			r.Delete("/", a.logout)
			r.Get("/balance", a.balance)
			r.Post("/income", a.addIncome)
			r.Post("/transfers", a.transfer)
			r.Delete("/card", a.closeAccount)
		})
	})
}

type cardResponse struct {
	Number  string `json:"number"`
	PIN     string `json:"pin,omitempty"`
	Balance int64  `json:"balance"`
}

type loginRequest struct {
	Number string `json:"number"`
	PIN    string `json:"pin"`
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type transferRequest struct {
	Target string `json:"target"`
	Amount int64  `json:"amount"`
}

type transferResponse struct {
	Result models.TransferResult `json:"result"`
}

func (a *API) createCard(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	card, err := a.issuer.CreateCard(r.Context())
	if err != nil {
		a.internalError(w, "create card", err)
		return
	}
	writeJSON(w, http.StatusCreated, cardResponse{Number: card.Number, PIN: card.PIN, Balance: card.Balance})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.accounts.NewSession()
	ok, err := s.Login(r.Context(), cardgen.NormalizePAN(req.Number), req.PIN)
	if err != nil {
		a.internalError(w, "login", err)
		return
	}
	if !ok {
		http.Error(w, "wrong card number or PIN", http.StatusUnauthorized)
		return
	}
	token, err := a.sessions.Create(r.Context(), s.CardNumber())
	if err != nil {
		a.internalError(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Token string `json:"token"`
	}{token})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Delete(r.Context(), chi.URLParam(r, "token")); err != nil {
		a.internalError(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.session(w, r)
	if !ok {
		return
	}
	balance, err := s.Balance(r.Context())
	if err != nil {
		a.internalError(w, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, cardResponse{Number: s.CardNumber(), Balance: balance})
}

func (a *API) addIncome(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.session(w, r)
	if !ok {
		return
	}
	err := s.AddIncome(r.Context(), req.Amount)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrBalanceOverflow):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		a.internalError(w, "add income", err)
	}
}

func (a *API) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.session(w, r)
	if !ok {
		return
	}
	res, err := s.Transfer(r.Context(), cardgen.NormalizePAN(req.Target), req.Amount)
	if err != nil {
		a.internalError(w, "transfer", err)
		return
	}
	status := http.StatusOK
	if res != models.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, transferResponse{Result: res})
}

func (a *API) closeAccount(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.CloseAccount(r.Context()); err != nil {
		a.internalError(w, "close account", err)
		return
	}
	if err := a.sessions.Delete(r.Context(), chi.URLParam(r, "token")); err != nil {
		a.logger.Error("dropping session after close", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {token} URL parameter into a logged in session.
func (a *API) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	number, err := a.sessions.Lookup(r.Context(), chi.URLParam(r, "token"))
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return nil, false
	}
	if err != nil {
		a.internalError(w, "lookup session", err)
		return nil, false
	}
	return a.accounts.resume(number), true
}

func (a *API) internalError(w http.ResponseWriter, op string, err error) {
	a.logger.Error(op, "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
