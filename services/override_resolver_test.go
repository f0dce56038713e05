package services_test

import (
	"context"
	"errors"
	"testing"

	apperrors "courier-service/common/errors"
	"courier-service/models"
	"courier-service/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRateCardRepo struct {
	cards []models.RateCard
	err   error
}

func (m *mockRateCardRepo) FindActive(context.Context) ([]models.RateCard, error) {
	return m.cards, m.err
}

func (m *mockRateCardRepo) FindActiveByCourier(_ context.Context, courier string) ([]models.RateCard, error) {
	var out []models.RateCard
	for _, c := range m.cards {
		if c.Courier == courier {
			out = append(out, c)
		}
	}
	return out, m.err
}

func (m *mockRateCardRepo) FindByID(_ context.Context, id uuid.UUID) (*models.RateCard, error) {
	for i := range m.cards {
		if m.cards[i].ID == id {
			return &m.cards[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockRateCardRepo) BulkUpsert(_ context.Context, cards []models.RateCard) (int64, error) {
	m.cards = append(m.cards, cards...)
	return int64(len(cards)), nil
}

func (m *mockRateCardRepo) Deactivate(context.Context, uuid.UUID) error { return nil }
func (m *mockRateCardRepo) Delete(context.Context, uuid.UUID) error     { return nil }

type mockOverrideRepo struct {
	overrides []models.SellerRateOverride
	err       error
	calls     int
}

func (m *mockOverrideRepo) FindBySeller(_ context.Context, sellerID string) ([]models.SellerRateOverride, error) {
	m.calls++
	var out []models.SellerRateOverride
	for _, o := range m.overrides {
		if o.SellerID == sellerID {
			out = append(out, o)
		}
	}
	return out, m.err
}

func (m *mockOverrideRepo) Upsert(_ context.Context, o *models.SellerRateOverride) error {
	m.overrides = append(m.overrides, *o)
	return nil
}

func (m *mockOverrideRepo) Delete(context.Context, uuid.UUID) error { return nil }

func price(v float64) *float64 { return &v }

func baseCards() []models.RateCard {
	return []models.RateCard{
		laneCard("delhivery", models.ZoneWithinCity, 40, 15).RateCard,
		laneCard("bluedart", models.ZoneWithinCity, 60, 25).RateCard,
	}
}

func TestEffectiveRateCards_SellerOverride(t *testing.T) {
	base := baseCards()
	overrides := &mockOverrideRepo{overrides: []models.SellerRateOverride{
		{SellerID: "seller-1", BaseRateCardID: base[0].ID, BaseRate: price(35)},
		{SellerID: "seller-2", BaseRateCardID: base[1].ID, BaseRate: price(10)},
	}}
	r := services.NewOverrideResolver(&mockRateCardRepo{cards: base}, overrides, nil)

	cards, err := r.EffectiveRateCards(context.Background(), "seller-1")
	require.NoError(t, err)
	require.Len(t, cards, len(base))

	byCourier := map[string]models.EffectiveRateCard{}
	for _, c := range cards {
		byCourier[c.Courier] = c
	}
	assert.True(t, byCourier["delhivery"].IsOverride)
	assert.Equal(t, 35.0, byCourier["delhivery"].BaseRate)
	assert.Equal(t, 15.0, byCourier["delhivery"].AddlRate)
	assert.False(t, byCourier["bluedart"].IsOverride)
	assert.Equal(t, 60.0, byCourier["bluedart"].BaseRate)

	keys := func(cs []models.EffectiveRateCard) map[models.RateCardKey]bool {
		out := map[models.RateCardKey]bool{}
		for _, c := range cs {
			out[c.Key()] = true
		}
		return out
	}
	want := map[models.RateCardKey]bool{}
	for _, c := range base {
		want[c.Key()] = true
	}
	assert.Equal(t, want, keys(cards))
}

func TestEffectiveRateCards_NoSellerSkipsOverrides(t *testing.T) {
	overrides := &mockOverrideRepo{}
	r := services.NewOverrideResolver(&mockRateCardRepo{cards: baseCards()}, overrides, nil)

	cards, err := r.EffectiveRateCards(context.Background(), " ")
	require.NoError(t, err)
	assert.Len(t, cards, 2)
	assert.Zero(t, overrides.calls)
	for _, c := range cards {
		assert.False(t, c.IsOverride)
	}
}

func TestEffectiveRateCards_NoActiveCards(t *testing.T) {
	r := services.NewOverrideResolver(&mockRateCardRepo{}, &mockOverrideRepo{}, nil)

	cards, err := r.EffectiveRateCards(context.Background(), "seller-1")
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestEffectiveRateCards_StoreFailure(t *testing.T) {
	r := services.NewOverrideResolver(&mockRateCardRepo{err: errors.New("db down")}, &mockOverrideRepo{}, nil)
	_, err := r.EffectiveRateCards(context.Background(), "seller-1")
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))

	r = services.NewOverrideResolver(&mockRateCardRepo{cards: baseCards()}, &mockOverrideRepo{err: errors.New("db down")}, nil)
	_, err = r.EffectiveRateCards(context.Background(), "seller-1")
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))
}
