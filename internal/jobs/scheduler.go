package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/middleware"
	"github.com/UtkusMalen/CarTrackerBot/internal/models"
	"github.com/UtkusMalen/CarTrackerBot/internal/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NotificationScheduler - фоновый цикл уведомлений по отслеживаниям на время:
// раз в сутки проверяет пороги "осталось дней" и продлевает просроченные
// повторяющиеся отслеживания. Пороги из расписания не удаляются при отправке,
// только при подтверждении владельцем, поэтому неподтверждённое уведомление
// повторится на следующем проходе (доставка "как минимум один раз").
type NotificationScheduler struct {
	db           *gorm.DB
	notifier     services.Notifier
	startupDelay time.Duration
	interval     time.Duration
}

func NewNotificationScheduler(db *gorm.DB, notifier services.Notifier) *NotificationScheduler {
	return &NotificationScheduler{
		db:           db,
		notifier:     notifier,
		startupDelay: time.Minute,
		interval:     24 * time.Hour,
	}
}

// Run крутит цикл до отмены контекста; ошибки прохода логируются,
// следующая попытка - через обычный интервал
func (s *NotificationScheduler) Run(ctx context.Context) {
	logrus.Info("Запуск фоновой задачи: планировщик уведомлений")

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startupDelay):
	}

	for {
		s.sweep(ctx, time.Now())

		select {
		case <-ctx.Done():
			logrus.Info("Планировщик уведомлений остановлен")
			return
		case <-time.After(s.interval):
		}
	}
}

func (s *NotificationScheduler) sweep(ctx context.Context, today time.Time) {
	start := time.Now()
	defer func() {
		middleware.ObserveSweep("notification_scheduler", time.Since(start))
	}()

	if err := s.notifyThresholds(ctx, today); err != nil {
		logrus.WithError(err).Error("Ошибка прохода по порогам уведомлений")
	}
	if err := s.renewExpired(ctx, today); err != nil {
		logrus.WithError(err).Error("Ошибка продления повторяющихся отслеживаний")
	}
}

// timeTrackingRow - строка выборки отслеживаний на время вместе с данными
// автомобиля и владельца
type timeTrackingRow struct {
	ID                   uint
	Name                 string
	IntervalDays         int
	LastResetDate        time.Time
	NotificationSchedule string
	IsRepeating          bool
	UserID               uint
	CarID                uint
	CarName              string
}

func (s *NotificationScheduler) timeTrackings(extra string, args ...interface{}) ([]timeTrackingRow, error) {
	q := s.db.Table("trackings").
		Select("trackings.id, trackings.name, trackings.interval_days, trackings.last_reset_date, trackings.notification_schedule, trackings.is_repeating, cars.user_id, cars.id as car_id, cars.name as car_name").
		Joins("JOIN cars ON cars.id = trackings.car_id").
		Where("trackings.kind = ?", models.TrackingKindTime).
		Where("trackings.last_reset_date IS NOT NULL AND trackings.interval_days IS NOT NULL")
	if extra != "" {
		q = q.Where(extra, args...)
	}
	var rows []timeTrackingRow
	err := q.Scan(&rows).Error
	return rows, err
}

// notifyThresholds шлёт уведомление, когда остаток дней точно совпадает с
// одним из порогов текущего расписания
func (s *NotificationScheduler) notifyThresholds(ctx context.Context, today time.Time) error {
	rows, err := s.timeTrackings("trackings.notification_schedule <> ''")
	if err != nil {
		return err
	}

	for _, row := range rows {
		remaining := row.IntervalDays - models.DaysBetween(row.LastResetDate, today)
		if remaining < 0 {
			remaining = 0
		}

		member := false
		for _, d := range models.ParseSchedule(row.NotificationSchedule) {
			if d == remaining {
				member = true
				break
			}
		}
		if !member {
			continue
		}

		err := s.notifier.NotifyTimeTrackingDue(ctx, row.UserID, row.CarName, row.Name, remaining, row.ID)
		middleware.TrackNotification(services.NotificationTrackingDue, err)
		if err != nil {
			// ошибка доставки одному получателю не прерывает проход
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id":     row.UserID,
				"tracking_id": row.ID,
			}).Warn("Не удалось отправить уведомление о сроке")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"tracking_id": row.ID,
			"user_id":     row.UserID,
			"days_left":   remaining,
		}).Info("Отправлено уведомление о приближающемся сроке")
	}
	return nil
}

// renewExpired продлевает просроченные повторяющиеся отслеживания: опорная
// дата сдвигается ровно на один интервал, расписание восстанавливается из
// шаблона, владельцу уходит уведомление о продлении
func (s *NotificationScheduler) renewExpired(ctx context.Context, today time.Time) error {
	rows, err := s.timeTrackings("trackings.is_repeating = ?", true)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if row.IntervalDays-models.DaysBetween(row.LastResetDate, today) > 0 {
			continue
		}

		var tracking models.Tracking
		if err := s.db.First(&tracking, row.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// отслеживание удалили между выборкой и обработкой
				continue
			}
			logrus.WithError(err).WithField("tracking_id", row.ID).Error("Не удалось перечитать отслеживание")
			continue
		}

		if err := tracking.Advance(); err != nil {
			continue
		}

		// одна атомарная запись: новая опорная дата и полное расписание
		err := s.db.Model(&models.Tracking{}).Where("id = ?", tracking.ID).
			Updates(map[string]interface{}{
				"last_reset_date":       tracking.LastResetDate,
				"notification_schedule": tracking.NotificationSchedule,
			}).Error
		if err != nil {
			logrus.WithError(err).WithField("tracking_id", tracking.ID).Error("Не удалось продлить отслеживание")
			continue
		}

		nerr := s.notifier.NotifyTrackingRenewed(ctx, row.UserID, row.CarName, row.Name)
		middleware.TrackNotification(services.NotificationTrackingRenewed, nerr)
		if nerr != nil {
			logrus.WithError(nerr).WithField("tracking_id", tracking.ID).Warn("Не удалось отправить уведомление о продлении")
		}
		logrus.WithFields(logrus.Fields{
			"tracking_id":     tracking.ID,
			"last_reset_date": tracking.LastResetDate.Format("2006-01-02"),
		}).Info("Повторяющееся отслеживание продлено")
	}
	return nil
}
