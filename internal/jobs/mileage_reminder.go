package jobs

import (
	"context"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/middleware"
	"github.com/UtkusMalen/CarTrackerBot/internal/models"
	"github.com/UtkusMalen/CarTrackerBot/internal/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MileageReminderSweep - фоновый цикл напоминаний об обновлении пробега.
// Напоминание уходит владельцу, если его активный автомобиль с известным
// пробегом не обновлялся дольше настроенного периода.
type MileageReminderSweep struct {
	db           *gorm.DB
	notifier     services.Notifier
	startupDelay time.Duration
	interval     time.Duration
}

func NewMileageReminderSweep(db *gorm.DB, notifier services.Notifier) *MileageReminderSweep {
	return &MileageReminderSweep{
		db:           db,
		notifier:     notifier,
		startupDelay: time.Minute,
		interval:     24 * time.Hour,
	}
}

func (s *MileageReminderSweep) Run(ctx context.Context) {
	logrus.Info("Запуск фоновой задачи: напоминания о пробеге")

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startupDelay):
	}

	for {
		if err := s.sweep(ctx, time.Now()); err != nil {
			logrus.WithError(err).Error("Ошибка прохода напоминаний о пробеге")
		}

		select {
		case <-ctx.Done():
			logrus.Info("Цикл напоминаний о пробеге остановлен")
			return
		case <-time.After(s.interval):
		}
	}
}

type reminderRow struct {
	UserID              uint
	CarID               uint
	CarName             string
	LastMileageUpdateAt time.Time
	ReminderPeriod      int
}

func (s *MileageReminderSweep) sweep(ctx context.Context, today time.Time) error {
	start := time.Now()
	defer func() {
		middleware.ObserveSweep("mileage_reminder", time.Since(start))
	}()

	var rows []reminderRow
	err := s.db.Table("cars").
		Select("users.id as user_id, cars.id as car_id, cars.name as car_name, cars.last_mileage_update_at, users.mileage_reminder_period as reminder_period").
		Joins("JOIN users ON users.active_car_id = cars.id").
		Where("cars.mileage IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	due := 0
	for _, row := range rows {
		period := row.ReminderPeriod
		if period <= 0 {
			period = 1
		}
		if models.DaysBetween(row.LastMileageUpdateAt, today) < period {
			continue
		}

		due++
		err := s.notifier.NotifyMileageDue(ctx, row.UserID, row.CarName, row.CarID)
		middleware.TrackNotification(services.NotificationMileageDue, err)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id": row.UserID,
				"car_id":  row.CarID,
			}).Warn("Не удалось отправить напоминание о пробеге")
		}
	}

	if due > 0 {
		logrus.WithField("count", due).Info("Найдены владельцы для напоминания об обновлении пробега")
	}
	return nil
}
