package query

import (
	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
)

type AccountQueryService struct {
	ledger *repository.Ledger
}

func NewAccountQueryService(ledger *repository.Ledger) *AccountQueryService {
	return &AccountQueryService{ledger: ledger}
}

func (s *AccountQueryService) GetAccount(q cqrs.GetAccountQuery) (*models.Account, error) {
	rec, err := s.ledger.Get(q.AccountID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != q.RequestingUserID {
		return nil, repository.ErrForbidden
	}
	account := rec.Account
	return &account, nil
}

func (s *AccountQueryService) ListAccounts(q cqrs.ListAccountsQuery) ([]models.Account, error) {
	recs := s.ledger.ListByUser(q.UserID)
	out := make([]models.Account, len(recs))
	for i, rec := range recs {
		out[i] = rec.Account
	}
	return out, nil
}
