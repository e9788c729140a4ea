package donation

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/user"
)

const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

var (
	MinAmount = decimal.NewFromInt(1)
	MaxAmount = decimal.NewFromInt(10000)

	ErrNotFound         = core.NewNotFoundError("donation")
	ErrAmountRange      = errors.New("amount must be between 1.00 and 10000")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type Donation struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	ProviderIntentID string          `json:"-"`
	Email            string          `json:"email"`
	Note             string          `json:"note"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type NewDonation struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Note     string          `json:"note" validate:"max=500"`
}

func (nd *NewDonation) Validate(validate *validator.Validate) error {
	nd.Currency = core.CleanString(nd.Currency, true /* lower */)
	nd.Email = core.CleanString(nd.Email, true /* lower */)
	nd.Note = core.CleanString(nd.Note)

	if err := validate.Struct(nd); err != nil {
		return err
	}
	return ValidateAmount(nd.Amount)
}

// ValidateAmount checks MinAmount <= amt <= MaxAmount with at most 2 decimal places.
func ValidateAmount(amt decimal.Decimal) error {
	if amt.LessThan(MinAmount) || amt.GreaterThan(MaxAmount) || !amt.Equal(amt.Round(2)) {
		return core.NewValidationError(ErrAmountRange, core.FieldError{Field: "amount", Error: ErrAmountRange.Error()})
	}
	return nil
}

// Total is the sum of succeeded donations in one currency.
type Total struct {
	Currency string          `json:"currency"`
	Count    int             `json:"count"`
	Amount   decimal.Decimal `json:"amount"`
}

type Intent struct {
	ID           string
	ClientSecret string
}

type EventType string

const (
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventRefunded  EventType = "refunded"
	EventIgnored   EventType = ""
)

// Event is a verified payment provider notification.
type Event struct {
	Type     EventType
	IntentID string
}

type CreateResult struct {
	Donation     Donation `json:"donation"`
	ClientSecret string   `json:"client_secret"`
}

type (
	Repository interface {
		CreateDonation(ctx context.Context, d Donation, exec ...core.DBExecutor) (Donation, error)
		GetByIntentID(ctx context.Context, intentID string, exec ...core.DBExecutor) (Donation, error)
		UpdateDonation(ctx context.Context, d Donation, exec ...core.DBExecutor) (Donation, error)
		ListUserDonations(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Donation, error)
		Totals(ctx context.Context, status string, exec ...core.DBExecutor) ([]Total, error)
	}

	// PaymentProvider creates payment intents and verifies webhooks.
	PaymentProvider interface {
		CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (Intent, error)
		ParseWebhook(payload []byte, signature string) (Event, error)
	}

	Service interface {
		Create(ctx context.Context, donor *user.User, nd NewDonation) (CreateResult, error)
		HandleWebhook(ctx context.Context, payload []byte, signature string) error
		Mine(ctx context.Context, userID string) ([]Donation, error)
		Summary(ctx context.Context) ([]Total, error)
	}

	service struct {
		repo     Repository
		tx       core.TxRunner
		provider PaymentProvider
		mailSvc  core.EmailService
		currency string
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, tx core.TxRunner, provider PaymentProvider, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:     repo,
		tx:       tx,
		provider: provider,
		mailSvc:  mailSvc,
		currency: strings.ToLower(conf.Stripe.Currency),
		logger:   logger,
	}
}

// Create registers a pending donation and the provider intent the client confirms. donor is nil when anonymous.
func (svc *service) Create(ctx context.Context, donor *user.User, nd NewDonation) (CreateResult, error) {
	if err := ValidateAmount(nd.Amount); err != nil {
		return CreateResult{}, err
	}
	currency := strings.ToLower(core.CleanString(nd.Currency))
	if currency == "" {
		currency = svc.currency
	}

	now := core.Now()
	d := Donation{
		ID:        uuid.New().String(),
		Amount:    nd.Amount.Round(2),
		Currency:  currency,
		Status:    StatusPending,
		Email:     core.CleanString(nd.Email, true /* lower */),
		Note:      core.CleanString(nd.Note),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if donor != nil {
		d.UserID = donor.ID
		if d.Email == "" {
			d.Email = donor.Email
		}
	}

	intent, err := svc.provider.CreateIntent(ctx, d.Amount, d.Currency, map[string]string{"donation_id": d.ID})
	if err != nil {
		return CreateResult{}, errors.Wrap(err, "creating payment intent")
	}
	d.ProviderIntentID = intent.ID

	if d, err = svc.repo.CreateDonation(ctx, d); err != nil {
		return CreateResult{}, errors.Wrap(err, "creating donation")
	}
	return CreateResult{Donation: d, ClientSecret: intent.ClientSecret}, nil
}

var eventStatus = map[EventType]string{
	EventSucceeded: StatusSucceeded,
	EventFailed:    StatusFailed,
	EventRefunded:  StatusRefunded,
}

// HandleWebhook applies a verified provider event. Events for unknown intents are ignored.
func (svc *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := svc.provider.ParseWebhook(payload, signature)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("rejected webhook: %v", err))
		return core.NewValidationError(ErrInvalidSignature)
	}
	status, ok := eventStatus[evt.Type]
	if !ok {
		return nil
	}

	var (
		d       Donation
		receipt bool
	)
	err = svc.tx.RunInTx(ctx, "donation.webhook", func(exec core.DBExecutor) error {
		d, err = svc.repo.GetByIntentID(ctx, evt.IntentID, exec)
		if err != nil {
			return err
		}
		if d.Status == status {
			return nil
		}
		receipt = status == StatusSucceeded
		d.Status = status
		d.UpdatedAt = core.Now()
		d, err = svc.repo.UpdateDonation(ctx, d, exec)
		return err
	})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			svc.logger.Info(fmt.Sprintf("webhook for unknown intent %s ignored", evt.IntentID))
			return nil
		}
		return errors.Wrap(err, "updating donation")
	}

	if receipt && d.Email != "" {
		svc.mailSvc.SendMessages(receiptMail(d))
	}
	return nil
}

func receiptMail(d Donation) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Address: d.Email}},
		Subject:      "Thank you for your donation",
		TemplateName: "donation_receipt",
		TemplateData: map[string]string{
			"ID":       d.ID,
			"Amount":   d.Amount.StringFixed(2),
			"Currency": strings.ToUpper(d.Currency),
			"Date":     d.UpdatedAt.Format("January 2, 2006"),
		},
	}
}

func (svc *service) Mine(ctx context.Context, userID string) ([]Donation, error) {
	return svc.repo.ListUserDonations(ctx, userID)
}

func (svc *service) Summary(ctx context.Context) ([]Total, error) {
	return svc.repo.Totals(ctx, StatusSucceeded)
}
