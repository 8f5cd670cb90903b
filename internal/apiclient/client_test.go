package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, bool) {
	return string(s), s != ""
}

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", time.Second, staticTokens(token), nil), &hits
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func TestListAccounts_SendsBearerToken(t *testing.T) {
	c, _ := newTestClient(t, "tok-1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "ok",
			"data": []map[string]any{
				{"id": "a1", "accountNumber": "01000001", "isDefault": true, "balance": 100.5},
			},
		})
	})

	resp := c.ListAccounts(context.Background())
	if !resp.HasData() {
		t.Fatalf("expected data, got %+v", resp)
	}
	accounts := *resp.Data
	if len(accounts) != 1 || !accounts[0].Balance.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("unexpected accounts %+v", accounts)
	}
}

func TestAuthenticatedCall_WithoutToken(t *testing.T) {
	c, hits := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	resp := c.ListAccounts(context.Background())
	if resp.Success || resp.Message != MsgTokenNotFound {
		t.Fatalf("unexpected response %+v", resp)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatal("expected no network call without a token")
	}
}

func TestUnauthorized_RunsHook(t *testing.T) {
	c, _ := newTestClient(t, "expired", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "jwt expired"})
	})
	var called int32
	c.OnUnauthorized(func(context.Context) { atomic.AddInt32(&called, 1) })

	resp := c.GetAccount(context.Background(), "a1")
	if resp.Success || resp.Message != MsgUnauthorized {
		t.Fatalf("unexpected response %+v", resp)
	}
	if atomic.LoadInt32(&called) != 1 {
		t.Fatalf("expected hook to run once, ran %d", called)
	}
}

func TestLogin_UnauthorizedDoesNotRunHook(t *testing.T) {
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
	})
	c.OnUnauthorized(func(context.Context) { t.Error("hook must not run for login") })

	resp := c.Login(context.Background(), cqrs.LoginCommand{Email: "a@b.c", Password: "x"})
	if resp.Success || resp.Message != "Invalid credentials" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, staticTokens("tok"), nil)
	resp := c.ListAccounts(context.Background())
	if resp.Success || resp.Message != MsgNetworkError {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "fallback"},
		{"plain text", "Service unavailable", "Service unavailable"},
		{"json string", `"Account locked"`, "Account locked"},
		{"message field", `{"success":false,"message":"Insufficient funds"}`, "Insufficient funds"},
		{"errors array", `{"errors":[{"field":"email","description":"bad email"},{"description":"too short"}]}`, "bad email, too short"},
		{"errors object", `{"errors":{"email":["taken"],"password":"weak"}}`, "taken, weak"},
		{"nothing useful", `{"success":false}`, "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage([]byte(tt.body), "fallback"); got != tt.want {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServerBusinessError(t *testing.T) {
	c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid request data",
			"errors":  []map[string]string{{"field": "amount", "description": "amount: must be greater than 0"}},
		})
	})

	resp := c.CreateTransaction(context.Background(), cqrs.CreateTransferCommand{FromAccountID: "a1", RecipientAccountNumber: "0100", Amount: decimal.Zero})
	if resp.Success || resp.Message != "Invalid request data" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>"))
	})

	resp := c.GetAccount(context.Background(), "a1")
	if resp.Success || resp.Message != "Failed to fetch account details" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreateTransaction_Body(t *testing.T) {
	c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body["accountId"] != "a1" || body["recipientAccountNumber"] != "01000002" {
			t.Errorf("unexpected body %v", body)
		}
		if amt, ok := body["amount"].(float64); !ok || amt != 50 {
			t.Errorf("expected numeric amount, got %#v", body["amount"])
		}
		if _, ok := body["RequestingUserID"]; ok {
			t.Error("internal fields must not be sent")
		}
		writeJSON(w, http.StatusCreated, models.OK(models.Transaction{ID: "t1", Amount: decimal.NewFromInt(50)}, "Transfer completed"))
	})

	resp := c.CreateTransaction(context.Background(), cqrs.CreateTransferCommand{
		FromAccountID:          "a1",
		RecipientAccountNumber: "01000002",
		Amount:                 decimal.NewFromInt(50),
	})
	if !resp.HasData() || resp.Data.ID != "t1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestListTransactions_BothShapes(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bare array", `[{"id":"t1","amount":5},{"id":"t2","amount":7}]`},
		{"wrapped", `{"accountId":"a1","accountNumber":"0100","transactions":[{"id":"t1","amount":5},{"id":"t2","amount":7}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("accountId") != "a1" {
					t.Errorf("missing accountId query: %s", r.URL.RawQuery)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"success":true,"message":"","data":` + tt.data + `}`))
			})

			resp := c.ListTransactions(context.Background(), cqrs.ListTransactionsQuery{AccountID: "a1"})
			if !resp.HasData() || len(resp.Data.Transactions) != 2 {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestVerifyAccount_QueryEscaped(t *testing.T) {
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "a b&c" {
			t.Errorf("token = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Account verified"})
	})

	resp := c.VerifyAccount(context.Background(), cqrs.VerifyAccountCommand{Token: "a b&c"})
	if !resp.Success || !strings.Contains(resp.Message, "verified") {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCheck(t *testing.T) {
	if err := Check(models.OK(1, "")); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	err := Check(models.Fail[int](MsgUnauthorized))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if errors.Is(Check(models.Fail[int]("Insufficient funds")), ErrUnauthorized) {
		t.Fatal("business error must not match ErrUnauthorized")
	}
	if got := Check(models.Fail[int]("")).Error(); got != "Request failed" {
		t.Fatalf("unexpected default message %q", got)
	}
}
