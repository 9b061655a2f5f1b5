package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AllowanceConfig задаёт дневную норму вознаграждаемых километров и курс
// обмена километров на орехи
type AllowanceConfig struct {
	KmPerDay int // сколько километров бюджета накапливается за сутки
	KmPerNut int // сколько вознаграждаемых километров стоит один орех
}

// AllowanceConfigFromEnv читает константы из окружения, как и остальная
// конфигурация процесса
func AllowanceConfigFromEnv() AllowanceConfig {
	cfg := AllowanceConfig{KmPerDay: 100, KmPerNut: 10}
	if v, err := strconv.Atoi(os.Getenv("ALLOWANCE_KM_PER_DAY")); err == nil && v > 0 {
		cfg.KmPerDay = v
	}
	if v, err := strconv.Atoi(os.Getenv("KM_PER_NUT")); err == nil && v > 0 {
		cfg.KmPerNut = v
	}
	return cfg
}

// MileageResult - итог обработки одного отчёта о пробеге
type MileageResult struct {
	MileageAdded       int `json:"mileage_added"`
	RewardableKm       int `json:"rewardable_km"`
	NutsAwarded        int `json:"nuts_awarded"`
	RemainingAllowance int `json:"remaining_allowance"`
	NewMileage         int `json:"new_mileage"`
}

// CalculateAllowance - чистый расчёт дросселя наград: бюджет пополняется по
// календарным дням с последнего обновления, вознаграждаемая дистанция
// ограничивается бюджетом, отрицательная дельта пробега считается нулевой.
func CalculateAllowance(oldMileage *int, currentAllowance int, lastUpdate time.Time, newMileage int, today time.Time, cfg AllowanceConfig) MileageResult {
	daysPassed := models.DaysBetween(lastUpdate, today)
	if daysPassed > 0 {
		currentAllowance += daysPassed * cfg.KmPerDay
	}

	old := 0
	if oldMileage != nil {
		old = *oldMileage
	}
	added := newMileage - old
	if added < 0 {
		added = 0
	}

	rewardable := added
	if rewardable > currentAllowance {
		rewardable = currentAllowance
	}

	persisted := newMileage
	if persisted < old {
		// одометр не может уменьшаться, заниженное значение не сохраняем
		persisted = old
	}

	return MileageResult{
		MileageAdded:       added,
		RewardableKm:       rewardable,
		NutsAwarded:        rewardable / cfg.KmPerNut,
		RemainingAllowance: currentAllowance - rewardable,
		NewMileage:         persisted,
	}
}

// MileageService применяет отчёты о пробеге: расчёт бюджета, запись нового
// пробега и начисление награды происходят в одной транзакции БД
type MileageService struct {
	db      *gorm.DB
	rewards *RewardService
	cfg     AllowanceConfig
}

func NewMileageService(db *gorm.DB, rewards *RewardService, cfg AllowanceConfig) *MileageService {
	return &MileageService{db: db, rewards: rewards, cfg: cfg}
}

// ReportMileage обрабатывает отчёт владельца о текущем пробеге автомобиля
func (s *MileageService) ReportMileage(carID uint, newMileage int, today time.Time) (MileageResult, error) {
	if newMileage < 0 {
		return MileageResult{}, models.ValidationError("пробег не может быть отрицательным")
	}

	var result MileageResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var car models.Car
		if err := tx.First(&car, carID).Error; err != nil {
			return err
		}

		result = CalculateAllowance(car.Mileage, car.MileageAllowance, car.LastAllowanceUpdateAt, newMileage, today, s.cfg)

		day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		updates := map[string]interface{}{
			"mileage":                  result.NewMileage,
			"mileage_allowance":        result.RemainingAllowance,
			"last_mileage_update_at":   day,
			"last_allowance_update_at": day,
		}
		if err := tx.Model(&models.Car{}).Where("id = ?", car.ID).Updates(updates).Error; err != nil {
			return err
		}

		if result.NutsAwarded > 0 {
			desc := fmt.Sprintf("Начисление за пробег +%d км", result.RewardableKm)
			if err := s.rewards.GrantTx(tx, car.UserID, result.NutsAwarded, desc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return MileageResult{}, err
	}

	logrus.WithFields(logrus.Fields{
		"car_id":    carID,
		"mileage":   result.NewMileage,
		"nuts":      result.NutsAwarded,
		"allowance": result.RemainingAllowance,
	}).Info("Пробег обновлён")
	return result, nil
}

// SnoozeMileageReminder переносит дату последнего отчёта на сегодня, не меняя
// пробег: следующее напоминание придёт через полный период владельца
func (s *MileageService) SnoozeMileageReminder(carID uint, today time.Time) error {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	res := s.db.Model(&models.Car{}).Where("id = ?", carID).
		Update("last_mileage_update_at", day)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	logrus.WithField("car_id", carID).Info("Напоминание о пробеге отложено")
	return nil
}
