package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eaglebank/webclient/shared/models"
)

// AccountRecord is the stored account together with its owner.
type AccountRecord struct {
	models.Account
	UserID    string
	CreatedAt time.Time
}

// TransferRequest moves Amount from one account to another in a single step.
type TransferRequest struct {
	ID              string
	Reference       string
	UserID          string
	FromAccountID   string
	ToAccountNumber string
	Amount          decimal.Decimal
	Description     string
	At              time.Time
}

// Ledger holds accounts and the transactions between them. Accounts and
// transactions share one lock so a transfer debits, credits and records
// atomically.
type Ledger struct {
	mu           sync.RWMutex
	accounts     map[string]*AccountRecord
	byNumber     map[string]string
	transactions []models.Transaction
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]*AccountRecord),
		byNumber: make(map[string]string),
	}
}

// CreateAccount stores rec. When rec is the default account every other
// account of the owner loses the flag.
func (l *Ledger) CreateAccount(rec AccountRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.byNumber[rec.AccountNumber]; taken {
		return ErrAccountNumberTaken
	}
	if rec.IsDefault {
		l.clearDefaultLocked(rec.UserID)
	}
	stored := rec
	l.accounts[rec.ID] = &stored
	l.byNumber[rec.AccountNumber] = rec.ID
	return nil
}

func (l *Ledger) Get(id string) (AccountRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.accounts[id]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return *rec, nil
}

func (l *Ledger) GetByNumber(number string) (AccountRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byNumber[number]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return *l.accounts[id], nil
}

// ListByUser returns the owner's accounts, oldest first.
func (l *Ledger) ListByUser(userID string) []AccountRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]AccountRecord, 0)
	for _, rec := range l.accounts {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (l *Ledger) CountByUser(userID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, rec := range l.accounts {
		if rec.UserID == userID {
			n++
		}
	}
	return n
}

// SetDefault makes id the only default account of userID.
func (l *Ledger) SetDefault(userID, id string) (AccountRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.accounts[id]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	if rec.UserID != userID {
		return AccountRecord{}, ErrForbidden
	}
	l.clearDefaultLocked(userID)
	rec.IsDefault = true
	return *rec, nil
}

func (l *Ledger) clearDefaultLocked(userID string) {
	for _, rec := range l.accounts {
		if rec.UserID == userID {
			rec.IsDefault = false
		}
	}
}

// Transfer debits the source, credits the recipient and records the
// transaction. Nothing changes when any check fails.
func (l *Ledger) Transfer(req TransferRequest) (models.Transaction, AccountRecord, AccountRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from, ok := l.accounts[req.FromAccountID]
	if !ok {
		return models.Transaction{}, AccountRecord{}, AccountRecord{}, ErrAccountNotFound
	}
	if from.UserID != req.UserID {
		return models.Transaction{}, AccountRecord{}, AccountRecord{}, ErrForbidden
	}
	toID, ok := l.byNumber[req.ToAccountNumber]
	if !ok {
		return models.Transaction{}, AccountRecord{}, AccountRecord{}, ErrRecipientNotFound
	}
	to := l.accounts[toID]
	if to.ID == from.ID {
		return models.Transaction{}, AccountRecord{}, AccountRecord{}, ErrSameAccount
	}
	if from.Balance.LessThan(req.Amount) {
		return models.Transaction{}, AccountRecord{}, AccountRecord{}, ErrInsufficientFunds
	}

	from.Balance = from.Balance.Sub(req.Amount)
	to.Balance = to.Balance.Add(req.Amount)

	tx := models.Transaction{
		ID:                   req.ID,
		TransactionReference: req.Reference,
		FromAccountID:        from.ID,
		FromAccount:          models.Party{ID: from.ID, AccountNumber: from.AccountNumber},
		ToAccountID:          to.ID,
		ToAccount:            models.Party{ID: to.ID, AccountNumber: to.AccountNumber},
		Amount:               req.Amount,
		Description:          req.Description,
		CreatedAt:            req.At.UTC(),
	}
	l.transactions = append(l.transactions, tx)
	return tx, *from, *to, nil
}

// ListTransactions returns the transactions touching accountID, newest first.
func (l *Ledger) ListTransactions(accountID string) []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Transaction, 0)
	for i := len(l.transactions) - 1; i >= 0; i-- {
		tx := l.transactions[i]
		if tx.FromAccountID == accountID || tx.ToAccountID == accountID {
			out = append(out, tx)
		}
	}
	return out
}
