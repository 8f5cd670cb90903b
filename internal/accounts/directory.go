// Package accounts keeps the signed-in user's accounts and the account the
// client is currently working with.
package accounts

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/eaglebank/webclient/internal/apiclient"
	"github.com/eaglebank/webclient/internal/storage"
	"github.com/eaglebank/webclient/shared/models"
)

// MsgNoAccount is the retained error once resolution found nothing to select.
const MsgNoAccount = "No account found"

var (
	ErrNoAccount      = errors.New("no account found")
	ErrUnknownAccount = errors.New("account is not in the directory")
	ErrSessionReset   = errors.New("session was reset")
)

// API is the subset of the REST client the directory needs.
type API interface {
	ListAccounts(ctx context.Context) models.Response[[]models.Account]
	CreateAccount(ctx context.Context) models.Response[models.Account]
	SetDefaultAccount(ctx context.Context, accountID string) models.Response[models.Account]
	GetAccount(ctx context.Context, accountID string) models.Response[models.Account]
}

// Feedback receives transient success and failure messages.
type Feedback interface {
	Success(msg string)
	Failure(msg string)
}

type nopFeedback struct{}

func (nopFeedback) Success(string) {}
func (nopFeedback) Failure(string) {}

type Directory struct {
	api      API
	store    storage.Store
	feedback Feedback
	log      *zap.SugaredLogger
	group    singleflight.Group

	mu         sync.RWMutex
	accounts   []models.Account
	currentID  string
	inflight   int
	resolved   bool
	lastErr    string
	generation uint64
}

func NewDirectory(api API, store storage.Store, feedback Feedback, log *zap.SugaredLogger) *Directory {
	if feedback == nil {
		feedback = nopFeedback{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Directory{api: api, store: store, feedback: feedback, log: log}
}

// FetchAccounts replaces the list with the server's. A failure is kept as the
// directory error and returned; the previous list stays in place.
func (d *Directory) FetchAccounts(ctx context.Context) error {
	gen := d.begin()
	defer d.end()

	resp := d.api.ListAccounts(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		return ErrSessionReset
	}
	if !resp.HasData() {
		err := checkOr(resp, "Failed to fetch accounts")
		d.lastErr = err.Error()
		return err
	}
	d.accounts = cloneAccounts(*resp.Data)
	d.lastErr = ""
	if d.indexOf(d.currentID) < 0 {
		d.currentID = ""
	}
	return nil
}

// ResolveDefaultAccount fetches the accounts and selects the current one: the
// remembered account if the server still lists it, else the server default.
// Concurrent calls share one fetch.
func (d *Directory) ResolveDefaultAccount(ctx context.Context) (models.Account, error) {
	v, err, _ := d.group.Do("resolve", func() (any, error) {
		return d.resolve(ctx)
	})
	if err != nil {
		return models.Account{}, err
	}
	return v.(models.Account), nil
}

func (d *Directory) resolve(ctx context.Context) (models.Account, error) {
	gen := d.begin()
	defer d.end()

	resp := d.api.ListAccounts(ctx)
	remembered, _ := d.store.Get(ctx, storage.KeyCurrentAccountID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		return models.Account{}, ErrSessionReset
	}
	d.resolved = true

	if !resp.HasData() {
		err := checkOr(resp, "Failed to fetch accounts")
		d.lastErr = err.Error()
		return models.Account{}, err
	}

	list := cloneAccounts(*resp.Data)
	selected := -1
	if remembered != "" {
		selected = indexIn(list, remembered)
	}
	if selected < 0 {
		for i, a := range list {
			if a.IsDefault {
				selected = i
				break
			}
		}
	}

	d.accounts = list
	if selected < 0 {
		d.currentID = ""
		d.lastErr = MsgNoAccount
		return models.Account{}, ErrNoAccount
	}
	d.currentID = list[selected].ID
	d.lastErr = ""
	return list[selected], nil
}

// SetCurrentAccount selects acc, or clears the selection when acc is nil, and
// persists the choice.
func (d *Directory) SetCurrentAccount(ctx context.Context, acc *models.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if acc == nil {
		d.currentID = ""
		return d.store.Delete(ctx, storage.KeyCurrentAccountID)
	}
	if d.indexOf(acc.ID) < 0 {
		return ErrUnknownAccount
	}
	d.currentID = acc.ID
	return d.store.Set(ctx, storage.KeyCurrentAccountID, acc.ID)
}

// Select is SetCurrentAccount by id.
func (d *Directory) Select(ctx context.Context, accountID string) error {
	acc, ok := d.Account(accountID)
	if !ok {
		return ErrUnknownAccount
	}
	return d.SetCurrentAccount(ctx, &acc)
}

// CreateAccount opens a new account, appends it and makes it current.
func (d *Directory) CreateAccount(ctx context.Context) (models.Account, error) {
	gen := d.begin()
	defer d.end()

	resp := d.api.CreateAccount(ctx)
	if !resp.HasData() {
		err := checkOr(resp, "Failed to create account")
		d.feedback.Failure(err.Error())
		return models.Account{}, err
	}
	acc := *resp.Data

	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		return models.Account{}, ErrSessionReset
	}
	if acc.IsDefault {
		for i := range d.accounts {
			d.accounts[i].IsDefault = false
		}
	}
	if i := d.indexOf(acc.ID); i >= 0 {
		d.accounts[i] = acc
	} else {
		d.accounts = append(d.accounts, acc)
	}
	d.currentID = acc.ID
	d.mu.Unlock()

	d.persistCurrent(ctx, acc.ID)
	d.feedback.Success("Account created successfully")
	return acc, nil
}

// SetDefaultAccount makes accountID the default on the server. On success it
// is the only local account flagged default and becomes current.
func (d *Directory) SetDefaultAccount(ctx context.Context, accountID string) error {
	gen := d.begin()
	defer d.end()

	resp := d.api.SetDefaultAccount(ctx, accountID)
	if !resp.HasData() {
		err := checkOr(resp, "Failed to update default account")
		d.feedback.Failure(err.Error())
		return err
	}

	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		return ErrSessionReset
	}
	if d.indexOf(accountID) < 0 {
		acc := *resp.Data
		acc.ID = accountID
		d.accounts = append(d.accounts, acc)
	}
	for i := range d.accounts {
		d.accounts[i].IsDefault = d.accounts[i].ID == accountID
	}
	d.currentID = accountID
	d.mu.Unlock()

	d.persistCurrent(ctx, accountID)
	d.feedback.Success("Default account updated")
	return nil
}

// GetAccountByID refreshes one account from the server and merges it into the
// list. The current selection follows automatically when it is that account.
func (d *Directory) GetAccountByID(ctx context.Context, accountID string) (models.Account, error) {
	gen := d.begin()
	defer d.end()

	resp := d.api.GetAccount(ctx, accountID)
	if !resp.HasData() {
		err := checkOr(resp, "Failed to fetch account")
		d.feedback.Failure(err.Error())
		return models.Account{}, err
	}
	acc := *resp.Data

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		return models.Account{}, ErrSessionReset
	}
	if i := d.indexOf(acc.ID); i >= 0 {
		d.accounts[i] = acc
	} else {
		d.accounts = append(d.accounts, acc)
	}
	if acc.IsDefault {
		for i := range d.accounts {
			d.accounts[i].IsDefault = d.accounts[i].ID == acc.ID
		}
	}
	return acc, nil
}

// Reset forgets everything, including the remembered selection. In-flight
// operations started before the reset do not write their results.
func (d *Directory) Reset(ctx context.Context) {
	d.mu.Lock()
	d.generation++
	d.accounts = nil
	d.currentID = ""
	d.resolved = false
	d.lastErr = ""
	d.mu.Unlock()

	if err := d.store.Delete(ctx, storage.KeyCurrentAccountID); err != nil {
		d.log.Warnw("failed to remove remembered account", "error", err)
	}
	d.group.Forget("resolve")
}

func (d *Directory) Accounts() []models.Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneAccounts(d.accounts)
}

func (d *Directory) Current() (models.Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.indexOf(d.currentID); i >= 0 {
		return d.accounts[i], true
	}
	return models.Account{}, false
}

func (d *Directory) Account(accountID string) (models.Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.indexOf(accountID); i >= 0 {
		return d.accounts[i], true
	}
	return models.Account{}, false
}

// Loading reports whether a directory request is in flight.
func (d *Directory) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inflight > 0
}

// Resolved reports whether ResolveDefaultAccount has completed since the last
// Reset, whatever its outcome.
func (d *Directory) Resolved() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.resolved
}

// Err returns the retained error message, empty when the last load succeeded.
func (d *Directory) Err() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

func (d *Directory) begin() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight++
	return d.generation
}

func (d *Directory) end() {
	d.mu.Lock()
	d.inflight--
	d.mu.Unlock()
}

func (d *Directory) persistCurrent(ctx context.Context, accountID string) {
	if err := d.store.Set(ctx, storage.KeyCurrentAccountID, accountID); err != nil {
		d.log.Warnw("failed to remember current account", "accountId", accountID, "error", err)
	}
}

// indexOf must be called with d.mu held.
func (d *Directory) indexOf(accountID string) int {
	if accountID == "" {
		return -1
	}
	return indexIn(d.accounts, accountID)
}

func indexIn(list []models.Account, accountID string) int {
	for i, a := range list {
		if a.ID == accountID {
			return i
		}
	}
	return -1
}

func cloneAccounts(in []models.Account) []models.Account {
	if in == nil {
		return nil
	}
	out := make([]models.Account, len(in))
	copy(out, in)
	return out
}

func checkOr[T any](resp models.Response[T], fallback string) error {
	if err := apiclient.Check(resp); err != nil {
		return err
	}
	return &apiclient.Error{Message: fallback}
}
