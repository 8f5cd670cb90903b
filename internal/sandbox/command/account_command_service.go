package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/utils"
)

const accountNumberAttempts = 5

// AccountCommandService opens accounts and moves the default flag.
type AccountCommandService struct {
	ledger         *repository.Ledger
	openingBalance decimal.Decimal
	log            *zap.SugaredLogger
	now            func() time.Time
}

func NewAccountCommandService(ledger *repository.Ledger, openingBalance decimal.Decimal, log *zap.SugaredLogger) *AccountCommandService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AccountCommandService{ledger: ledger, openingBalance: openingBalance, log: log, now: time.Now}
}

// CreateAccount opens an account credited with the opening balance. A user's
// first account becomes the default one.
func (s *AccountCommandService) CreateAccount(cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	first := s.ledger.CountByUser(cmd.UserID) == 0
	for i := 0; i < accountNumberAttempts; i++ {
		rec := repository.AccountRecord{
			Account: models.Account{
				ID:            utils.GenerateID("acc"),
				AccountNumber: utils.GenerateAccountNumber(),
				IsDefault:     first,
				Balance:       s.openingBalance,
			},
			UserID:    cmd.UserID,
			CreatedAt: s.now().UTC(),
		}
		err := s.ledger.CreateAccount(rec)
		if errors.Is(err, repository.ErrAccountNumberTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Infow("account created", "userId", cmd.UserID, "accountId", rec.ID, "default", first)
		account := rec.Account
		return &account, nil
	}
	return nil, fmt.Errorf("failed to allocate account number after %d attempts", accountNumberAttempts)
}

func (s *AccountCommandService) SetDefaultAccount(cmd cqrs.SetDefaultAccountCommand) (*models.Account, error) {
	rec, err := s.ledger.SetDefault(cmd.RequestingUserID, cmd.AccountID)
	if err != nil {
		return nil, err
	}
	s.log.Infow("default account changed", "userId", cmd.RequestingUserID, "accountId", rec.ID)
	account := rec.Account
	return &account, nil
}
