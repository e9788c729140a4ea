package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/donation"
)

const donationColumns = "id, user_id, amount, currency, status, provider_intent_id, email, note, created_at, updated_at"

type donationRow struct {
	ID               string          `db:"id"`
	UserID           null.String     `db:"user_id"`
	Amount           decimal.Decimal `db:"amount"`
	Currency         string          `db:"currency"`
	Status           string          `db:"status"`
	ProviderIntentID string          `db:"provider_intent_id"`
	Email            string          `db:"email"`
	Note             string          `db:"note"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

type donationRepository struct {
	baseRepository
}

var _ donation.Repository = (*donationRepository)(nil)

func NewDonationRepository(exec core.DBExecutor) donation.Repository {
	return &donationRepository{baseRepository{exec: exec}}
}

func (repo donationRepository) boil(d donation.Donation) donationRow {
	return donationRow{
		ID:               d.ID,
		UserID:           nullString(d.UserID),
		Amount:           d.Amount,
		Currency:         d.Currency,
		Status:           d.Status,
		ProviderIntentID: d.ProviderIntentID,
		Email:            d.Email,
		Note:             d.Note,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

func (repo donationRepository) unboil(row donationRow) donation.Donation {
	return donation.Donation{
		ID:               row.ID,
		UserID:           row.UserID.String,
		Amount:           row.Amount,
		Currency:         row.Currency,
		Status:           row.Status,
		ProviderIntentID: row.ProviderIntentID,
		Email:            row.Email,
		Note:             row.Note,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

func (repo donationRepository) CreateDonation(ctx context.Context, d donation.Donation, exec ...core.DBExecutor) (donation.Donation, error) {
	q := `INSERT INTO donations (` + donationColumns + `)
		VALUES (:id, :user_id, :amount, :currency, :status, :provider_intent_id, :email, :note, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.boil(d)); err != nil {
		return donation.Donation{}, errors.Wrap(err, "inserting donation")
	}
	return d, nil
}

// GetByIntentID locks the row when called inside a transaction.
func (repo donationRepository) GetByIntentID(ctx context.Context, intentID string, exec ...core.DBExecutor) (donation.Donation, error) {
	exe := repo.getExec(exec)
	q := "SELECT " + donationColumns + " FROM donations WHERE provider_intent_id = ?"
	if len(exec) > 0 && exec[0] != nil {
		q += " FOR UPDATE"
	}
	var row donationRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(q), intentID); err != nil {
		return donation.Donation{}, trapNoRowsErr(err, donation.ErrNotFound, "finding donation")
	}
	return repo.unboil(row), nil
}

func (repo donationRepository) UpdateDonation(ctx context.Context, d donation.Donation, exec ...core.DBExecutor) (donation.Donation, error) {
	q := `UPDATE donations SET status = :status, email = :email, note = :note, updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.boil(d))
	if err != nil {
		return donation.Donation{}, errors.Wrap(err, "updating donation")
	}
	if err := rowsAffected(res, donation.ErrNotFound, "updating donation"); err != nil {
		return donation.Donation{}, err
	}
	return d, nil
}

func (repo donationRepository) ListUserDonations(ctx context.Context, userID string, exec ...core.DBExecutor) ([]donation.Donation, error) {
	if !isUUID(userID) {
		return []donation.Donation{}, nil
	}
	exe := repo.getExec(exec)
	var rows []donationRow
	q := exe.Rebind("SELECT " + donationColumns + " FROM donations WHERE user_id = ? ORDER BY created_at DESC")
	if err := exe.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing donations")
	}
	res := make([]donation.Donation, 0, len(rows))
	for _, r := range rows {
		res = append(res, repo.unboil(r))
	}
	return res, nil
}

func (repo donationRepository) Totals(ctx context.Context, status string, exec ...core.DBExecutor) ([]donation.Total, error) {
	exe := repo.getExec(exec)
	var rows []struct {
		Currency string          `db:"currency"`
		Count    int             `db:"count"`
		Amount   decimal.Decimal `db:"amount"`
	}
	q := exe.Rebind("SELECT currency, COUNT(*) AS count, SUM(amount) AS amount FROM donations WHERE status = ? GROUP BY currency ORDER BY currency")
	if err := exe.SelectContext(ctx, &rows, q, status); err != nil {
		return nil, errors.Wrap(err, "summing donations")
	}
	res := make([]donation.Total, 0, len(rows))
	for _, r := range rows {
		res = append(res, donation.Total{Currency: r.Currency, Count: r.Count, Amount: r.Amount})
	}
	return res, nil
}
