package query

import (
	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
)

type TransactionQueryService struct {
	ledger *repository.Ledger
	users  *repository.UserRepository
}

func NewTransactionQueryService(ledger *repository.Ledger, users *repository.UserRepository) *TransactionQueryService {
	return &TransactionQueryService{ledger: ledger, users: users}
}

// ListTransactions returns the account's history with the names of both
// parties filled in.
func (s *TransactionQueryService) ListTransactions(q cqrs.ListTransactionsQuery) (*models.TransactionList, error) {
	rec, err := s.ledger.Get(q.AccountID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != q.UserID {
		return nil, repository.ErrForbidden
	}

	owners := map[string]*models.PartyUser{}
	nameOf := func(accountID string) *models.PartyUser {
		if p, ok := owners[accountID]; ok {
			return p
		}
		var p *models.PartyUser
		if acc, err := s.ledger.Get(accountID); err == nil {
			if u, err := s.users.GetByID(acc.UserID); err == nil {
				p = &models.PartyUser{FirstName: u.FirstName, LastName: u.LastName}
			}
		}
		owners[accountID] = p
		return p
	}

	txs := s.ledger.ListTransactions(rec.ID)
	for i := range txs {
		txs[i].FromAccount.User = nameOf(txs[i].FromAccountID)
		txs[i].ToAccount.User = nameOf(txs[i].ToAccountID)
	}
	return &models.TransactionList{
		AccountID:      rec.ID,
		AccountNumber:  rec.AccountNumber,
		DefaultAccount: rec.IsDefault,
		Transactions:   txs,
	}, nil
}
