package repository_test

import (
	"context"
	"regexp"
	"testing"

	"courier-service/models"
	"courier-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRateCardFindActive(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormRateCardRepository(gormDB)

	rows := sqlmock.NewRows([]string{"id", "courier", "product_name", "mode", "zone", "rate_band", "base_rate", "addl_rate", "minimum_billable_weight", "is_active"}).
		AddRow(uuid.New(), "delhivery", "Surface 0.5", "Surface", "Within City", "RBX1", 40.0, 15.0, 0.5, true).
		AddRow(uuid.New(), "xpressbees", "Air 0.5", "Air", "Within City", "RBX1", 55.0, 20.0, 0.5, true)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rate_cards" WHERE is_active = $1`)).
		WithArgs(true).
		WillReturnRows(rows)

	cards, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, models.ZoneWithinCity, cards[0].Zone)
	assert.Equal(t, 15.0, cards[0].AddlRate)
}

func TestRateCardFindActiveByCourier_LowercasesCode(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormRateCardRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rate_cards" WHERE (is_active = $1 AND courier = $2)`)).
		WithArgs(true, "bluedart").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cards, err := repo.FindActiveByCourier(context.Background(), "BlueDart")
	assert.NoError(t, err)
	assert.Empty(t, cards)
}

func TestRateCardBulkUpsert_OnConflictIdentity(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormRateCardRepository(gormDB)

	cards := []models.RateCard{
		{ID: uuid.New(), Courier: "Delhivery", ProductName: "Surface", Mode: models.ModeSurface, Zone: models.ZoneWithinCity, BaseRate: 40, AddlRate: 15},
		{ID: uuid.New(), Courier: "dtdc", ProductName: "Express", Mode: models.ModeExpress, Zone: models.ZoneWithinCity, BaseRate: 50, AddlRate: 18},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "rate_cards"`) + `.*` +
		regexp.QuoteMeta(`ON CONFLICT ("courier","product_name","mode","zone","rate_band") DO UPDATE SET`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(cards[0].ID).AddRow(cards[1].ID))
	mock.ExpectCommit()

	_, err := repo.BulkUpsert(context.Background(), cards)
	require.NoError(t, err)
	assert.Equal(t, "delhivery", cards[0].Courier)
	assert.Equal(t, models.DefaultRateBand, cards[0].RateBand)
	assert.Equal(t, models.DefaultMinimumBillableWeight, cards[1].MinimumBillableWeight)
	assert.True(t, cards[1].IsActive)
}

func TestRateCardBulkUpsert_Empty(t *testing.T) {
	gormDB, _ := setupMockDB(t)
	repo := repository.NewGormRateCardRepository(gormDB)

	n, err := repo.BulkUpsert(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestRateCardDeactivate(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormRateCardRepository(gormDB)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "rate_cards" SET "is_active"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	assert.NoError(t, repo.Deactivate(context.Background(), id))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "rate_cards"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	assert.ErrorIs(t, repo.Deactivate(context.Background(), id), gorm.ErrRecordNotFound)
}

func TestRateCardDelete_IsHard(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormRateCardRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "rate_cards" WHERE id = $1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Delete(context.Background(), uuid.New()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
