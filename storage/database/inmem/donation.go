package inmemdb

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/donation"
)

type donationRepository struct {
	db *donationTable
}

var _ donation.Repository = (*donationRepository)(nil)

func NewDonationRepository(db *DB) donation.Repository {
	return &donationRepository{db: db.donation}
}

func (repo *donationRepository) CreateDonation(ctx context.Context, d donation.Donation, exec ...core.DBExecutor) (donation.Donation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[d.ID] = &d
	return d, nil
}

func (repo *donationRepository) GetByIntentID(ctx context.Context, intentID string, exec ...core.DBExecutor) (donation.Donation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, d := range repo.db.table {
		if d.ProviderIntentID == intentID {
			return *d, nil
		}
	}
	return donation.Donation{}, donation.ErrNotFound
}

func (repo *donationRepository) UpdateDonation(ctx context.Context, d donation.Donation, exec ...core.DBExecutor) (donation.Donation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[d.ID]; !ok {
		return donation.Donation{}, donation.ErrNotFound
	}
	repo.db.table[d.ID] = &d
	return d, nil
}

func (repo *donationRepository) ListUserDonations(ctx context.Context, userID string, exec ...core.DBExecutor) ([]donation.Donation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]donation.Donation, 0)
	for _, d := range repo.db.table {
		if d.UserID == userID {
			res = append(res, *d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (repo *donationRepository) Totals(ctx context.Context, status string, exec ...core.DBExecutor) ([]donation.Total, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	byCurrency := make(map[string]*donation.Total)
	for _, d := range repo.db.table {
		if d.Status != status {
			continue
		}
		t, ok := byCurrency[d.Currency]
		if !ok {
			t = &donation.Total{Currency: d.Currency, Amount: decimal.Zero}
			byCurrency[d.Currency] = t
		}
		t.Count++
		t.Amount = t.Amount.Add(d.Amount)
	}

	res := make([]donation.Total, 0, len(byCurrency))
	for _, t := range byCurrency {
		res = append(res, *t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Currency < res[j].Currency })
	return res, nil
}
