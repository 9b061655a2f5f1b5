package jobs

import (
	"context"
	"testing"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMileageReminderNotifiesStaleActiveCar(t *testing.T) {
	db := openTestDB(t)
	seedCar(t, db, 1) // last_mileage_update_at = 2026-03-01

	notifier := &fakeNotifier{}
	s := NewMileageReminderSweep(db, notifier)

	// период по умолчанию - 1 день
	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 2)))
	require.Len(t, notifier.mileage, 1)
	assert.Equal(t, uint(1), notifier.mileage[0])

	// в день отчёта напоминание не шлётся
	notifier.mileage = nil
	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 1)))
	assert.Empty(t, notifier.mileage)
}

func TestMileageReminderHonorsOwnerPeriod(t *testing.T) {
	db := openTestDB(t)
	seedCar(t, db, 1)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", 1).
		Update("mileage_reminder_period", 7).Error)

	notifier := &fakeNotifier{}
	s := NewMileageReminderSweep(db, notifier)

	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 5)))
	assert.Empty(t, notifier.mileage)

	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 8)))
	assert.Len(t, notifier.mileage, 1)
}

func TestMileageReminderSkipsInactiveAndUnknownMileage(t *testing.T) {
	db := openTestDB(t)
	car := seedCar(t, db, 1)

	// второй автомобиль не активен: по нему не напоминаем
	other := models.Car{
		UserID:                1,
		Name:                  "Запасной",
		Mileage:               intPtr(10000),
		LastMileageUpdateAt:   day(2026, 1, 1),
		LastAllowanceUpdateAt: day(2026, 1, 1),
	}
	require.NoError(t, db.Create(&other).Error)

	notifier := &fakeNotifier{}
	s := NewMileageReminderSweep(db, notifier)
	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 10)))
	assert.Len(t, notifier.mileage, 1)

	// пробег активного автомобиля неизвестен - напоминать не о чем
	notifier.mileage = nil
	require.NoError(t, db.Model(&models.Car{}).Where("id = ?", car.ID).
		Update("mileage", nil).Error)
	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 10)))
	assert.Empty(t, notifier.mileage)
}

func TestMileageReminderAfterSnooze(t *testing.T) {
	db := openTestDB(t)
	car := seedCar(t, db, 1)

	notifier := &fakeNotifier{}
	s := NewMileageReminderSweep(db, notifier)

	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 10)))
	require.Len(t, notifier.mileage, 1)

	// откладывание переносит дату отчёта на сегодня, напоминание замолкает
	require.NoError(t, db.Model(&models.Car{}).Where("id = ?", car.ID).
		Update("last_mileage_update_at", day(2026, 3, 10)).Error)
	notifier.mileage = nil
	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 10)))
	assert.Empty(t, notifier.mileage)

	require.NoError(t, s.sweep(context.Background(), day(2026, 3, 11)))
	assert.Len(t, notifier.mileage, 1)
}
