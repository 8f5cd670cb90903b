package accounts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eaglebank/webclient/internal/storage"
	"github.com/eaglebank/webclient/shared/models"
)

// ---- mock implementations ----

type mockAPI struct {
	listFn       func() models.Response[[]models.Account]
	createFn     func() models.Response[models.Account]
	setDefaultFn func(id string) models.Response[models.Account]
	getFn        func(id string) models.Response[models.Account]
	listCalls    int32
}

func (m *mockAPI) ListAccounts(context.Context) models.Response[[]models.Account] {
	atomic.AddInt32(&m.listCalls, 1)
	if m.listFn != nil {
		return m.listFn()
	}
	return models.Fail[[]models.Account]("not configured")
}

func (m *mockAPI) CreateAccount(context.Context) models.Response[models.Account] {
	if m.createFn != nil {
		return m.createFn()
	}
	return models.Fail[models.Account]("not configured")
}

func (m *mockAPI) SetDefaultAccount(_ context.Context, id string) models.Response[models.Account] {
	if m.setDefaultFn != nil {
		return m.setDefaultFn(id)
	}
	return models.Fail[models.Account]("not configured")
}

func (m *mockAPI) GetAccount(_ context.Context, id string) models.Response[models.Account] {
	if m.getFn != nil {
		return m.getFn(id)
	}
	return models.Fail[models.Account]("not configured")
}

type recordingFeedback struct {
	mu       sync.Mutex
	success  []string
	failures []string
}

func (r *recordingFeedback) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, msg)
}

func (r *recordingFeedback) Failure(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, msg)
}

// ---- test data ----

func threeAccounts() []models.Account {
	return []models.Account{
		{ID: "a1", AccountNumber: "01000001", Balance: decimal.NewFromInt(100)},
		{ID: "a2", AccountNumber: "01000002", IsDefault: true, Balance: decimal.NewFromInt(20)},
		{ID: "a3", AccountNumber: "01000003", Balance: decimal.NewFromInt(5)},
	}
}

func listing(accounts []models.Account) func() models.Response[[]models.Account] {
	return func() models.Response[[]models.Account] {
		return models.OK(accounts, "")
	}
}

func newTestDirectory(api *mockAPI) (*Directory, storage.Store, *recordingFeedback) {
	st := storage.NewMemory()
	fb := &recordingFeedback{}
	return NewDirectory(api, st, fb, nil), st, fb
}

func defaults(list []models.Account) []string {
	var ids []string
	for _, a := range list {
		if a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// ---- tests ----

func TestResolveDefaultAccount_Priority(t *testing.T) {
	tests := []struct {
		name       string
		accounts   []models.Account
		remembered string
		wantID     string
		wantErr    error
	}{
		{"remembered wins", threeAccounts(), "a3", "a3", nil},
		{"stale remembered falls back to default", threeAccounts(), "gone", "a2", nil},
		{"server default", threeAccounts(), "", "a2", nil},
		{"no default and nothing remembered", []models.Account{{ID: "a1"}, {ID: "a2"}}, "", "", ErrNoAccount},
		{"empty list", []models.Account{}, "", "", ErrNoAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d, st, _ := newTestDirectory(&mockAPI{listFn: listing(tt.accounts)})
			if tt.remembered != "" {
				_ = st.Set(ctx, storage.KeyCurrentAccountID, tt.remembered)
			}

			acc, err := d.ResolveDefaultAccount(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if acc.ID != tt.wantID {
				t.Fatalf("selected %q, want %q", acc.ID, tt.wantID)
			}
			if tt.wantErr != nil && d.Err() != MsgNoAccount {
				t.Fatalf("expected retained error %q, got %q", MsgNoAccount, d.Err())
			}
			if !d.Resolved() {
				t.Fatal("expected directory to be resolved")
			}
			if len(d.Accounts()) != len(tt.accounts) {
				t.Fatalf("expected %d accounts, got %d", len(tt.accounts), len(d.Accounts()))
			}
		})
	}
}

func TestResolveDefaultAccount_Idempotent(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDirectory(&mockAPI{listFn: listing(threeAccounts())})

	first, err := d.ResolveDefaultAccount(ctx)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := d.ResolveDefaultAccount(ctx)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("resolution changed: %s then %s", first.ID, second.ID)
	}
	cur, _ := d.Current()
	if cur.ID != first.ID || len(d.Accounts()) != 3 {
		t.Fatalf("unexpected state %+v %d", cur, len(d.Accounts()))
	}
}

func TestResolveDefaultAccount_CoalescesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	api := &mockAPI{listFn: func() models.Response[[]models.Account] {
		<-release
		return models.OK(threeAccounts(), "")
	}}
	d, _, _ := newTestDirectory(api)

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, _ := d.ResolveDefaultAccount(context.Background())
			results[i] = acc.ID
		}(i)
	}

	deadline := time.Now().Add(time.Second)
	for !d.Loading() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	for i, id := range results {
		if id != "a2" {
			t.Fatalf("caller %d got %q", i, id)
		}
	}
	if calls := atomic.LoadInt32(&api.listCalls); calls > n {
		t.Fatalf("unexpected number of fetches %d", calls)
	}
	if d.Loading() {
		t.Fatal("loading flag left set")
	}
}

func TestResolveDefaultAccount_FailureKeepsState(t *testing.T) {
	ctx := context.Background()
	api := &mockAPI{listFn: listing(threeAccounts())}
	d, _, fb := newTestDirectory(api)
	if _, err := d.ResolveDefaultAccount(ctx); err != nil {
		t.Fatal(err)
	}

	api.listFn = func() models.Response[[]models.Account] {
		return models.Fail[[]models.Account]("Network error or no response from server")
	}
	if _, err := d.ResolveDefaultAccount(ctx); err == nil {
		t.Fatal("expected error")
	}
	if d.Err() != "Network error or no response from server" {
		t.Fatalf("unexpected retained error %q", d.Err())
	}
	if cur, ok := d.Current(); !ok || cur.ID != "a2" {
		t.Fatal("failure must not clear the current account")
	}
	if len(fb.failures) != 0 {
		t.Fatal("load failures must not raise a toast")
	}
}

func TestSetDefaultAccount_ExactlyOneDefault(t *testing.T) {
	ctx := context.Background()
	api := &mockAPI{
		listFn: listing(threeAccounts()),
		setDefaultFn: func(id string) models.Response[models.Account] {
			return models.OK(models.Account{ID: id, IsDefault: true}, "Default account updated")
		},
	}
	d, st, fb := newTestDirectory(api)
	if _, err := d.ResolveDefaultAccount(ctx); err != nil {
		t.Fatal(err)
	}

	if err := d.SetDefaultAccount(ctx, "a3"); err != nil {
		t.Fatalf("SetDefaultAccount: %v", err)
	}
	if got := defaults(d.Accounts()); len(got) != 1 || got[0] != "a3" {
		t.Fatalf("defaults = %v, want [a3]", got)
	}
	if cur, _ := d.Current(); cur.ID != "a3" {
		t.Fatalf("current = %s, want a3", cur.ID)
	}
	if v, _ := st.Get(ctx, storage.KeyCurrentAccountID); v != "a3" {
		t.Fatalf("remembered = %q", v)
	}
	if len(fb.success) != 1 {
		t.Fatalf("expected success feedback, got %v", fb.success)
	}
}

func TestSetDefaultAccount_FailureLeavesState(t *testing.T) {
	ctx := context.Background()
	api := &mockAPI{
		listFn: listing(threeAccounts()),
		setDefaultFn: func(string) models.Response[models.Account] {
			return models.Fail[models.Account]("Account not found")
		},
	}
	d, _, fb := newTestDirectory(api)
	_, _ = d.ResolveDefaultAccount(ctx)

	if err := d.SetDefaultAccount(ctx, "a3"); err == nil || err.Error() != "Account not found" {
		t.Fatalf("unexpected error %v", err)
	}
	if got := defaults(d.Accounts()); len(got) != 1 || got[0] != "a2" {
		t.Fatalf("defaults changed: %v", got)
	}
	if len(fb.failures) != 1 || fb.failures[0] != "Account not found" {
		t.Fatalf("expected failure toast, got %v", fb.failures)
	}
}

func TestCreateAccount_AppendsAndSelects(t *testing.T) {
	ctx := context.Background()
	api := &mockAPI{
		listFn: listing(threeAccounts()),
		createFn: func() models.Response[models.Account] {
			return models.OK(models.Account{ID: "a4", AccountNumber: "01000004"}, "created")
		},
	}
	d, _, _ := newTestDirectory(api)
	_, _ = d.ResolveDefaultAccount(ctx)

	acc, err := d.CreateAccount(ctx)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.ID != "a4" || len(d.Accounts()) != 4 {
		t.Fatalf("account not appended: %+v", d.Accounts())
	}
	if cur, _ := d.Current(); cur.ID != "a4" {
		t.Fatalf("current = %s", cur.ID)
	}
}

func TestGetAccountByID_MergesBalance(t *testing.T) {
	ctx := context.Background()
	api := &mockAPI{
		listFn: listing(threeAccounts()),
		getFn: func(id string) models.Response[models.Account] {
			return models.OK(models.Account{ID: id, AccountNumber: "01000002", IsDefault: true, Balance: decimal.NewFromInt(7)}, "")
		},
	}
	d, _, _ := newTestDirectory(api)
	_, _ = d.ResolveDefaultAccount(ctx)

	if _, err := d.GetAccountByID(ctx, "a2"); err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	cur, _ := d.Current()
	if !cur.Balance.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("current balance = %s", cur.Balance)
	}
	if len(d.Accounts()) != 3 {
		t.Fatalf("refresh must replace, not append: %d", len(d.Accounts()))
	}

	if _, err := d.GetAccountByID(ctx, "a9"); err != nil {
		t.Fatal(err)
	}
	if len(d.Accounts()) != 4 {
		t.Fatal("unknown account should be appended")
	}
	if got := defaults(d.Accounts()); len(got) != 1 {
		t.Fatalf("expected a single default, got %v", got)
	}
}

func TestSetCurrentAccount(t *testing.T) {
	ctx := context.Background()
	d, st, _ := newTestDirectory(&mockAPI{listFn: listing(threeAccounts())})
	_, _ = d.ResolveDefaultAccount(ctx)

	if err := d.Select(ctx, "a1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if v, _ := st.Get(ctx, storage.KeyCurrentAccountID); v != "a1" {
		t.Fatalf("remembered = %q", v)
	}
	if err := d.Select(ctx, "nope"); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
	if err := d.SetCurrentAccount(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Current(); ok {
		t.Fatal("expected no current account")
	}
	if _, ok := st.Get(ctx, storage.KeyCurrentAccountID); ok {
		t.Fatal("remembered id should be cleared")
	}
}

func TestReset_DropsInFlightResults(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	api := &mockAPI{listFn: func() models.Response[[]models.Account] {
		<-release
		return models.OK(threeAccounts(), "")
	}}
	d, st, _ := newTestDirectory(api)
	_ = st.Set(ctx, storage.KeyCurrentAccountID, "a1")

	done := make(chan error, 1)
	go func() {
		_, err := d.ResolveDefaultAccount(ctx)
		done <- err
	}()
	for !d.Loading() {
		time.Sleep(time.Millisecond)
	}
	d.Reset(ctx)
	close(release)

	if err := <-done; !errors.Is(err, ErrSessionReset) {
		t.Fatalf("expected ErrSessionReset, got %v", err)
	}
	if len(d.Accounts()) != 0 || d.Resolved() {
		t.Fatal("stale resolution leaked into the directory")
	}
	if keys, _ := st.Keys(ctx); len(keys) != 0 {
		t.Fatalf("expected storage to be empty, got %v", keys)
	}
}
