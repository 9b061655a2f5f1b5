package handlers

import (
	"net/http"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FuelCreate добавляет запись заправки. При заправке до полного бака
// закрывается интервал "полный бак - полный бак": на предыдущую полную
// запись записывается расход в л/100км
func FuelCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		var req struct {
			Mileage    *int     `json:"mileage" binding:"required"`
			Liters     *float64 `json:"liters" binding:"required"`
			TotalSum   *float64 `json:"total_sum"`
			IsFullTank bool     `json:"is_full_tank"`
			FilledAt   string   `json:"filled_at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}
		if *req.Mileage < 0 || *req.Liters <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Пробег и литры должны быть положительными"})
			return
		}

		filledAt := time.Now()
		if req.FilledAt != "" {
			parsed, err := time.ParseInLocation("2006-01-02", req.FilledAt, time.UTC)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Дата должна быть в формате 2006-01-02"})
				return
			}
			filledAt = parsed
		}

		entry := models.FuelEntry{
			CarID:      car.ID,
			Mileage:    *req.Mileage,
			Liters:     *req.Liters,
			TotalSum:   req.TotalSum,
			IsFullTank: req.IsFullTank,
			FilledAt:   filledAt,
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			if !entry.IsFullTank {
				return nil
			}
			return closeConsumptionInterval(tx, &entry)
		})
		if err != nil {
			respondError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{"car_id": car.ID, "fuel_entry_id": entry.ID}).Info("Добавлена заправка")
		c.JSON(http.StatusCreated, entry)
	}
}

// closeConsumptionInterval находит предыдущую полную заправку и записывает на
// неё расход: всё залитое после неё (включая текущую полную), делённое на
// пройденный путь
func closeConsumptionInterval(tx *gorm.DB, entry *models.FuelEntry) error {
	var prev models.FuelEntry
	err := tx.Where("car_id = ? AND is_full_tank = ? AND mileage < ? AND id <> ?",
		entry.CarID, true, entry.Mileage, entry.ID).
		Order("mileage DESC").First(&prev).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	var used *float64
	err = tx.Model(&models.FuelEntry{}).
		Where("car_id = ? AND mileage > ? AND mileage <= ?", entry.CarID, prev.Mileage, entry.Mileage).
		Select("SUM(liters)").Scan(&used).Error
	if err != nil {
		return err
	}

	distance := entry.Mileage - prev.Mileage
	if used == nil || distance <= 0 {
		return nil
	}
	consumption := *used / float64(distance) * 100
	return tx.Model(&models.FuelEntry{}).Where("id = ?", prev.ID).
		Update("fuel_consumption", consumption).Error
}

// FuelList возвращает страницу заправок от новых к старым; для каждой записи
// считается путь от предыдущей заправки
func FuelList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}
		page := pageParam(c)

		var total int64
		if err := db.Model(&models.FuelEntry{}).Where("car_id = ?", car.ID).Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}

		// запрашиваем на одну запись больше, чтобы посчитать путь для
		// последней записи на странице
		var entries []models.FuelEntry
		err := db.Where("car_id = ?", car.ID).
			Order("mileage DESC, id DESC").
			Limit(11).Offset((page - 1) * 10).
			Find(&entries).Error
		if err != nil {
			respondError(c, err)
			return
		}

		pageEntries := entries
		if len(pageEntries) > 10 {
			pageEntries = pageEntries[:10]
		}
		items := make([]models.FuelEntryResponse, 0, len(pageEntries))
		for i, e := range pageEntries {
			distance := 0
			if i+1 < len(entries) {
				distance = e.Mileage - entries[i+1].Mileage
			}
			items = append(items, models.FuelEntryResponse{
				ID:              e.ID,
				Mileage:         e.Mileage,
				Liters:          e.Liters,
				TotalSum:        e.TotalSum,
				IsFullTank:      e.IsFullTank,
				FuelConsumption: e.FuelConsumption,
				FilledAt:        e.FilledAt.Format("2006-01-02"),
				Distance:        distance,
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page})
	}
}

func FuelDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		entryID, ok := pathID(c, "id")
		if !ok {
			return
		}

		var entry models.FuelEntry
		if err := db.First(&entry, entryID).Error; err != nil {
			respondError(c, err)
			return
		}
		if _, ok := ownedCar(db, c, entry.CarID); !ok {
			return
		}

		if err := db.Delete(&models.FuelEntry{}, entry.ID).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// FuelSummary - литры и суммы за текущий месяц, прошлый месяц и всё время
func FuelSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		var entries []models.FuelEntry
		if err := db.Select("liters, total_sum, filled_at").
			Where("car_id = ?", car.ID).Find(&entries).Error; err != nil {
			respondError(c, err)
			return
		}

		today := time.Now()
		lastMonth := today.AddDate(0, 0, -today.Day())
		var summary models.FuelSummary
		for _, e := range entries {
			sum := 0.0
			if e.TotalSum != nil {
				sum = *e.TotalSum
			}
			summary.LitersAllTime += e.Liters
			summary.SumAllTime += sum
			if e.FilledAt.Year() == today.Year() && e.FilledAt.Month() == today.Month() {
				summary.LitersThisMonth += e.Liters
				summary.SumThisMonth += sum
			}
			if e.FilledAt.Year() == lastMonth.Year() && e.FilledAt.Month() == lastMonth.Month() {
				summary.LitersLastMonth += e.Liters
				summary.SumLastMonth += sum
			}
		}
		c.JSON(http.StatusOK, summary)
	}
}
