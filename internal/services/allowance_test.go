package services

import (
	"testing"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testCfg = AllowanceConfig{KmPerDay: 100, KmPerNut: 10}

func intPtr(v int) *int { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateAllowanceAccruesByDays(t *testing.T) {
	// за 5 дней накапливается 500 км бюджета, проехано 400 - всё вознаграждается
	res := CalculateAllowance(intPtr(50000), 0, day(2026, 3, 1), 50400, day(2026, 3, 6), testCfg)

	assert.Equal(t, 400, res.MileageAdded)
	assert.Equal(t, 400, res.RewardableKm)
	assert.Equal(t, 40, res.NutsAwarded)
	assert.Equal(t, 100, res.RemainingAllowance)
	assert.Equal(t, 50400, res.NewMileage)
}

func TestCalculateAllowanceCapsAtBudget(t *testing.T) {
	// проехано больше, чем накопилось: вознаграждается только бюджет
	res := CalculateAllowance(intPtr(50000), 0, day(2026, 3, 1), 51000, day(2026, 3, 3), testCfg)

	assert.Equal(t, 1000, res.MileageAdded)
	assert.Equal(t, 200, res.RewardableKm)
	assert.Equal(t, 20, res.NutsAwarded)
	assert.Equal(t, 0, res.RemainingAllowance)
	// пробег сохраняется полностью, дросселируется только награда
	assert.Equal(t, 51000, res.NewMileage)
}

func TestCalculateAllowanceSameDayUsesLeftover(t *testing.T) {
	// второй отчёт в тот же день: новых дней нет, тратится остаток бюджета
	res := CalculateAllowance(intPtr(50400), 100, day(2026, 3, 6), 50700, day(2026, 3, 6), testCfg)

	assert.Equal(t, 300, res.MileageAdded)
	assert.Equal(t, 100, res.RewardableKm)
	assert.Equal(t, 10, res.NutsAwarded)
	assert.Equal(t, 0, res.RemainingAllowance)
}

func TestCalculateAllowanceZeroDaysElapsed(t *testing.T) {
	cfg := AllowanceConfig{KmPerDay: 1000, KmPerNut: 10}
	res := CalculateAllowance(intPtr(10000), 1000, day(2026, 3, 1), 10300, day(2026, 3, 1), cfg)

	assert.Equal(t, 300, res.RewardableKm)
	assert.Equal(t, 30, res.NutsAwarded)
	assert.Equal(t, 700, res.RemainingAllowance)
}

func TestCalculateAllowanceNegativeDelta(t *testing.T) {
	// заниженный пробег: ничего не начисляется, одометр не откатывается
	res := CalculateAllowance(intPtr(50000), 0, day(2026, 3, 1), 49000, day(2026, 3, 2), testCfg)

	assert.Equal(t, 0, res.MileageAdded)
	assert.Equal(t, 0, res.NutsAwarded)
	assert.Equal(t, 50000, res.NewMileage)
	// накопленный за день бюджет остаётся на будущее
	assert.Equal(t, 100, res.RemainingAllowance)
}

func TestCalculateAllowanceFirstReport(t *testing.T) {
	// первый отчёт: прежнего пробега нет, дельта считается от нуля
	res := CalculateAllowance(nil, 0, day(2026, 3, 1), 150000, day(2026, 3, 2), testCfg)

	assert.Equal(t, 150000, res.MileageAdded)
	assert.Equal(t, 100, res.RewardableKm)
	assert.Equal(t, 10, res.NutsAwarded)
	assert.Equal(t, 150000, res.NewMileage)
}

func TestCalculateAllowanceRoundsNutsDown(t *testing.T) {
	res := CalculateAllowance(intPtr(0), 0, day(2026, 3, 1), 99, day(2026, 3, 3), testCfg)

	assert.Equal(t, 99, res.RewardableKm)
	assert.Equal(t, 9, res.NutsAwarded)
}

func TestReportMileagePersistsAndRewards(t *testing.T) {
	db := openTestDB(t)
	rewards := NewRewardService(db)
	svc := NewMileageService(db, rewards, testCfg)
	createUser(t, db, 1)

	car := models.Car{
		UserID:                1,
		Name:                  "Octavia",
		Mileage:               intPtr(50000),
		LastMileageUpdateAt:   day(2026, 3, 1),
		LastAllowanceUpdateAt: day(2026, 3, 1),
	}
	require.NoError(t, db.Create(&car).Error)

	res, err := svc.ReportMileage(car.ID, 50400, day(2026, 3, 6))
	require.NoError(t, err)
	assert.Equal(t, 40, res.NutsAwarded)

	var saved models.Car
	require.NoError(t, db.First(&saved, car.ID).Error)
	assert.Equal(t, 50400, *saved.Mileage)
	assert.Equal(t, 100, saved.MileageAllowance)
	assert.Equal(t, "2026-03-06", saved.LastMileageUpdateAt.Format("2006-01-02"))
	assert.Equal(t, "2026-03-06", saved.LastAllowanceUpdateAt.Format("2006-01-02"))

	// начисление лежит в журнале и в балансе
	balance, err := rewards.Balance(1)
	require.NoError(t, err)
	assert.Equal(t, 40, balance)

	var tr models.Transaction
	require.NoError(t, db.Where("user_id = ?", 1).First(&tr).Error)
	assert.Equal(t, "Начисление за пробег +400 км", tr.Description)
}

func TestReportMileageRejectsNegative(t *testing.T) {
	db := openTestDB(t)
	svc := NewMileageService(db, NewRewardService(db), testCfg)

	_, err := svc.ReportMileage(1, -5, time.Now())
	var vErr models.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestReportMileageUnknownCar(t *testing.T) {
	db := openTestDB(t)
	svc := NewMileageService(db, NewRewardService(db), testCfg)

	_, err := svc.ReportMileage(999, 1000, time.Now())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSnoozeMileageReminder(t *testing.T) {
	db := openTestDB(t)
	svc := NewMileageService(db, NewRewardService(db), testCfg)
	createUser(t, db, 1)

	car := models.Car{
		UserID:                1,
		Name:                  "Octavia",
		Mileage:               intPtr(50000),
		LastMileageUpdateAt:   day(2026, 3, 1),
		LastAllowanceUpdateAt: day(2026, 3, 1),
	}
	require.NoError(t, db.Create(&car).Error)

	require.NoError(t, svc.SnoozeMileageReminder(car.ID, day(2026, 3, 10)))

	var saved models.Car
	require.NoError(t, db.First(&saved, car.ID).Error)
	assert.Equal(t, "2026-03-10", saved.LastMileageUpdateAt.Format("2006-01-02"))
	// откладывание не трогает ни пробег, ни бюджет наград
	assert.Equal(t, 50000, *saved.Mileage)
	assert.Equal(t, "2026-03-01", saved.LastAllowanceUpdateAt.Format("2006-01-02"))

	assert.ErrorIs(t, svc.SnoozeMileageReminder(999, time.Now()), gorm.ErrRecordNotFound)
}
