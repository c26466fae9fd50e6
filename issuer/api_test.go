package issuer_test

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alovak/simple-banking/issuer"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func newAPIClient(t *testing.T) *apiClient {
	repo := issuer.NewRepository(nil)
	api := issuer.NewAPI(testLogger,
		issuer.NewService(testLogger, repo, nil, issuer.DefaultConfig()),
		issuer.NewAccounts(testLogger, repo),
		issuer.NewMemorySessions(0))
	router := chi.NewRouter()
	api.AppendRoutes(router)
	return &apiClient{t: t, router: router}
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	if out != nil && (w.Code < 300 || w.Code == http.StatusUnprocessableEntity) {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

type card struct {
	Number  string `json:"number"`
	PIN     string `json:"pin"`
	Balance int64  `json:"balance"`
}

func (c *apiClient) createCard() card {
	var out card
	require.Equal(c.t, http.StatusCreated, c.do(http.MethodPost, "/cards", nil, &out))
	require.Len(c.t, out.Number, 16)
	require.Len(c.t, out.PIN, 4)
	return out
}

func (c *apiClient) login(cd card) string {
	var out struct {
		Token string `json:"token"`
	}
	require.Equal(c.t, http.StatusCreated, c.do(http.MethodPost, "/sessions", map[string]string{"number": cd.Number, "pin": cd.PIN}, &out))
	require.NotEmpty(c.t, out.Token)
	return out.Token
}

type transferResult struct {
	Result string `json:"result"`
}

func TestAPI(t *testing.T) {
	c := newAPIClient(t)

	a := c.createCard()
	b := c.createCard()
	require.NotEqual(t, a.Number, b.Number)

	t.Run("wrong PIN", func(t *testing.T) {
		code := c.do(http.MethodPost, "/sessions", map[string]string{"number": a.Number, "pin": "x"}, nil)
		require.Equal(t, http.StatusUnauthorized, code)
	})

	token := c.login(a)
	base := "/sessions/" + token

	t.Run("income", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, c.do(http.MethodPost, base+"/income", map[string]int64{"amount": 10000}, nil))
		require.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, base+"/income", map[string]int64{"amount": 0}, nil))
		require.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, base+"/income", map[string]int64{"amount": math.MaxInt64}, nil))

		var bal card
		require.Equal(t, http.StatusOK, c.do(http.MethodGet, base+"/balance", nil, &bal))
		require.Equal(t, a.Number, bal.Number)
		require.Equal(t, int64(10000), bal.Balance)
	})

	t.Run("transfers", func(t *testing.T) {
		var res transferResult
		code := c.do(http.MethodPost, base+"/transfers", map[string]any{"target": b.Number, "amount": 5000}, &res)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "SUCCESS", res.Result)

		code = c.do(http.MethodPost, base+"/transfers", map[string]any{"target": b.Number, "amount": 6000}, &res)
		require.Equal(t, http.StatusUnprocessableEntity, code)
		require.Equal(t, "NOT_ENOUGH_MONEY_ERROR", res.Result)

		code = c.do(http.MethodPost, base+"/transfers", map[string]any{"target": "4000003972196502", "amount": 1}, &res)
		require.Equal(t, http.StatusUnprocessableEntity, code)
		require.Equal(t, "CARD_NUMBER_ERROR", res.Result)

		code = c.do(http.MethodPost, base+"/transfers", map[string]any{"target": a.Number, "amount": 1}, &res)
		require.Equal(t, http.StatusUnprocessableEntity, code)
		require.Equal(t, "SAME_ACCOUNT_ERROR", res.Result)

		var bal card
		require.Equal(t, http.StatusOK, c.do(http.MethodGet, base+"/balance", nil, &bal))
		require.Equal(t, int64(5000), bal.Balance)
	})

	t.Run("unknown token", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/sessions/nope/balance", nil, nil))
	})

	t.Run("close account", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, base+"/card", nil, nil))
		require.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, base+"/balance", nil, nil))
		code := c.do(http.MethodPost, "/sessions", map[string]string{"number": a.Number, "pin": a.PIN}, nil)
		require.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("logout", func(t *testing.T) {
		token := c.login(b)
		var bal card
		require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/sessions/"+token+"/balance", nil, &bal))
		require.Equal(t, int64(5000), bal.Balance)

		require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/sessions/"+token, nil, nil))
		require.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/sessions/"+token+"/balance", nil, nil))
	})
}

func TestAPIBadJSON(t *testing.T) {
	c := newAPIClient(t)
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
