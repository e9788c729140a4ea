package donation_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/donation"
	"github.com/trezcool/selah/core/user"
	emailsvc "github.com/trezcool/selah/services/email"
	logsvc "github.com/trezcool/selah/services/logger"
	inmemdb "github.com/trezcool/selah/storage/database/inmem"
)

type providerMock struct {
	mock.Mock
}

func (m *providerMock) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (donation.Intent, error) {
	args := m.Called(amount.String(), currency)
	return args.Get(0).(donation.Intent), args.Error(1)
}

func (m *providerMock) ParseWebhook(payload []byte, signature string) (donation.Event, error) {
	args := m.Called(string(payload), signature)
	return args.Get(0).(donation.Event), args.Error(1)
}

var donor = user.User{ID: "d1", Email: "donor@selah.test"}

func setup(t *testing.T) (donation.Service, *providerMock) {
	t.Helper()
	db := inmemdb.Open()
	logger := logsvc.NewTestLogger()
	conf := core.NewTestConfig()
	provider := new(providerMock)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	svc := donation.NewService(conf, inmemdb.NewDonationRepository(db), db, provider, mailSvc, logger)
	emailsvc.ResetSentMessages()
	return svc, provider
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"1", true},
		{"25.50", true},
		{"10000", true},
		{"0.99", false},
		{"10000.01", false},
		{"-5", false},
		{"12.345", false},
	}
	for _, tt := range tests {
		err := donation.ValidateAmount(amount(tt.amount))
		if tt.valid {
			assert.NoError(t, err, tt.amount)
		} else {
			var verr *core.ValidationError
			assert.ErrorAs(t, err, &verr, tt.amount)
		}
	}
}

func TestNewDonation_Validate(t *testing.T) {
	validate := validator.New()

	nd := donation.NewDonation{Amount: amount("25.50"), Currency: " EUR ", Email: " Anon@Selah.test ", Note: " for the servers "}
	require.NoError(t, nd.Validate(validate))
	assert.Equal(t, "eur", nd.Currency)
	assert.Equal(t, "anon@selah.test", nd.Email)
	assert.Equal(t, "for the servers", nd.Note)

	nd = donation.NewDonation{Amount: amount("10"), Email: "   "}
	require.NoError(t, nd.Validate(validate), "blank emails are optional")
	assert.Empty(t, nd.Email)

	nd = donation.NewDonation{Amount: amount("10"), Email: " lol "}
	assert.Error(t, nd.Validate(validate))
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, provider := setup(t)

	t.Run("signed in donor", func(t *testing.T) {
		provider.On("CreateIntent", "25", "usd").Return(donation.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil).Once()
		res, err := svc.Create(ctx, &donor, donation.NewDonation{Amount: amount("25.00"), Note: " Thanks "})
		require.NoError(t, err)
		assert.Equal(t, "pi_1_secret", res.ClientSecret)
		assert.Equal(t, donation.StatusPending, res.Donation.Status)
		assert.Equal(t, "usd", res.Donation.Currency)
		assert.Equal(t, donor.ID, res.Donation.UserID)
		assert.Equal(t, donor.Email, res.Donation.Email)
		assert.Equal(t, "Thanks", res.Donation.Note)
	})

	t.Run("anonymous donor", func(t *testing.T) {
		provider.On("CreateIntent", "10", "eur").Return(donation.Intent{ID: "pi_2", ClientSecret: "pi_2_secret"}, nil).Once()
		res, err := svc.Create(ctx, nil, donation.NewDonation{Amount: amount("10"), Currency: "EUR"})
		require.NoError(t, err)
		assert.Empty(t, res.Donation.UserID)
		assert.Empty(t, res.Donation.Email)
		assert.Equal(t, "eur", res.Donation.Currency)
	})

	t.Run("invalid amount", func(t *testing.T) {
		_, err := svc.Create(ctx, &donor, donation.NewDonation{Amount: amount("0.5")})
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("provider failure", func(t *testing.T) {
		provider.On("CreateIntent", "30", "usd").Return(donation.Intent{}, errors.New("card network down")).Once()
		_, err := svc.Create(ctx, &donor, donation.NewDonation{Amount: amount("30")})
		assert.Error(t, err)
	})

	mine, err := svc.Mine(ctx, donor.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	provider.AssertExpectations(t)
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	svc, provider := setup(t)

	provider.On("CreateIntent", "50", "usd").Return(donation.Intent{ID: "pi_1"}, nil).Once()
	_, err := svc.Create(ctx, &donor, donation.NewDonation{Amount: amount("50")})
	require.NoError(t, err)

	event := func(payload string, typ donation.EventType, intentID string) {
		provider.On("ParseWebhook", payload, "sig").Return(donation.Event{Type: typ, IntentID: intentID}, nil).Once()
	}
	status := func() string {
		mine, err := svc.Mine(ctx, donor.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		return mine[0].Status
	}

	t.Run("bad signature", func(t *testing.T) {
		provider.On("ParseWebhook", "forged", "bad").Return(donation.Event{}, errors.New("signature mismatch")).Once()
		err := svc.HandleWebhook(ctx, []byte("forged"), "bad")
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, donation.ErrInvalidSignature, verr.Err)
	})

	t.Run("ignored event types and unknown intents", func(t *testing.T) {
		event("other", donation.EventIgnored, "pi_1")
		require.NoError(t, svc.HandleWebhook(ctx, []byte("other"), "sig"))
		event("unknown", donation.EventSucceeded, "pi_404")
		require.NoError(t, svc.HandleWebhook(ctx, []byte("unknown"), "sig"))
		assert.Equal(t, donation.StatusPending, status())
	})

	t.Run("success sends a receipt once", func(t *testing.T) {
		event("ok", donation.EventSucceeded, "pi_1")
		require.NoError(t, svc.HandleWebhook(ctx, []byte("ok"), "sig"))
		assert.Equal(t, donation.StatusSucceeded, status())

		msg, sent := emailsvc.LastSentMessage()
		require.True(t, sent)
		assert.Equal(t, donor.Email, msg.To[0].Address)
		assert.Contains(t, msg.TextContent, "50.00 USD")

		emailsvc.ResetSentMessages()
		event("ok again", donation.EventSucceeded, "pi_1")
		require.NoError(t, svc.HandleWebhook(ctx, []byte("ok again"), "sig"))
		_, sent = emailsvc.LastSentMessage()
		assert.False(t, sent, "replayed events change nothing")
	})

	t.Run("refund", func(t *testing.T) {
		event("refund", donation.EventRefunded, "pi_1")
		require.NoError(t, svc.HandleWebhook(ctx, []byte("refund"), "sig"))
		assert.Equal(t, donation.StatusRefunded, status())
	})

	provider.AssertExpectations(t)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	svc, provider := setup(t)

	give := func(amt, currency, intentID string, succeed bool) {
		provider.On("CreateIntent", amount(amt).String(), currency).Return(donation.Intent{ID: intentID}, nil).Once()
		_, err := svc.Create(ctx, nil, donation.NewDonation{Amount: amount(amt), Currency: currency})
		require.NoError(t, err)
		if succeed {
			provider.On("ParseWebhook", intentID, "sig").Return(donation.Event{Type: donation.EventSucceeded, IntentID: intentID}, nil).Once()
			require.NoError(t, svc.HandleWebhook(ctx, []byte(intentID), "sig"))
		}
	}
	give("10.50", "usd", "pi_1", true)
	give("4.50", "usd", "pi_2", true)
	give("20", "eur", "pi_3", true)
	give("99", "usd", "pi_4", false)

	totals, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "eur", totals[0].Currency)
	assert.Equal(t, 1, totals[0].Count)
	assert.Equal(t, "usd", totals[1].Currency)
	assert.Equal(t, 2, totals[1].Count)
	assert.True(t, amount("15").Equal(totals[1].Amount), totals[1].Amount.String())
}
