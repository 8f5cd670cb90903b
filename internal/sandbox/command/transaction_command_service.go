package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/events"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/utils"
)

var ErrInvalidAmount = errors.New("amount must be greater than zero")

// Notifier delivers a socket notification to one user. Both the in-process
// hub and the Redis stream publisher satisfy it.
type Notifier interface {
	Publish(ctx context.Context, n events.Notification) error
}

// TransactionCommandService moves money between accounts and tells both
// parties about it on the socket channel.
type TransactionCommandService struct {
	ledger       *repository.Ledger
	users        *repository.UserRepository
	notifier     Notifier
	videoBaseURL string
	log          *zap.SugaredLogger
	now          func() time.Time
}

func NewTransactionCommandService(
	ledger *repository.Ledger,
	users *repository.UserRepository,
	notifier Notifier,
	videoBaseURL string,
	log *zap.SugaredLogger,
) *TransactionCommandService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TransactionCommandService{
		ledger:       ledger,
		users:        users,
		notifier:     notifier,
		videoBaseURL: strings.TrimRight(videoBaseURL, "/"),
		log:          log,
		now:          time.Now,
	}
}

func (s *TransactionCommandService) CreateTransaction(ctx context.Context, cmd cqrs.CreateTransferCommand) (*models.Transaction, error) {
	if !cmd.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	tx, from, to, err := s.ledger.Transfer(repository.TransferRequest{
		ID:              utils.GenerateID("tan"),
		Reference:       utils.GenerateReference(),
		UserID:          cmd.RequestingUserID,
		FromAccountID:   cmd.FromAccountID,
		ToAccountNumber: strings.TrimSpace(cmd.RecipientAccountNumber),
		Amount:          cmd.Amount,
		Description:     cmd.Description,
		At:              s.now(),
	})
	if err != nil {
		return nil, err
	}

	sender := s.partyUser(from.UserID)
	recipient := s.partyUser(to.UserID)
	tx.FromAccount.User = sender
	tx.ToAccount.User = recipient

	s.log.Infow("transfer completed",
		"transactionId", tx.ID,
		"from", from.AccountNumber,
		"to", to.AccountNumber,
		"amount", tx.Amount.String(),
	)
	s.notify(ctx, tx, from.UserID, to.UserID, sender, recipient)
	return &tx, nil
}

// notify sends money-sent to the payer and money-transfer to the payee. Both
// share one video room. Delivery failures are logged; the transfer stands.
func (s *TransactionCommandService) notify(ctx context.Context, tx models.Transaction, senderID, recipientID string, sender, recipient *models.PartyUser) {
	if s.notifier == nil {
		return
	}
	room := s.videoBaseURL + "/eaglebank-" + uuid.NewString()
	at := s.now()

	sent, err := events.NewFrame(events.MoneySent, events.MoneySentEvent{
		To:           displayName(recipient),
		Amount:       tx.Amount,
		VideoCallURL: room,
	}, at)
	if err == nil {
		err = s.notifier.Publish(ctx, events.Notification{UserID: senderID, Frame: sent})
	}
	if err != nil {
		s.log.Warnw("failed to publish money-sent", "transactionId", tx.ID, "error", err)
	}

	received, err := events.NewFrame(events.MoneyTransfer, events.MoneyTransferEvent{
		From:         displayName(sender),
		Amount:       tx.Amount,
		VideoCallURL: room,
	}, at)
	if err == nil {
		err = s.notifier.Publish(ctx, events.Notification{UserID: recipientID, Frame: received})
	}
	if err != nil {
		s.log.Warnw("failed to publish money-transfer", "transactionId", tx.ID, "error", err)
	}
}

func (s *TransactionCommandService) partyUser(userID string) *models.PartyUser {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return nil
	}
	return &models.PartyUser{FirstName: u.FirstName, LastName: u.LastName}
}

func displayName(p *models.PartyUser) string {
	if p == nil || p.FirstName == "" {
		return "Unknown"
	}
	return p.FirstName
}
