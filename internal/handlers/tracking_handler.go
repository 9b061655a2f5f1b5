package handlers

import (
	"net/http"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TrackingCreate создаёт отслеживание. Поля вида можно заполнить сразу или
// частями позже; ненастроенное отслеживание просто не срабатывает.
func TrackingCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		name, _ := body["name"].(string)
		kindRaw, _ := body["kind"].(string)
		kind := models.TrackingKind(kindRaw)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Название обязательно"})
			return
		}
		switch kind {
		case models.TrackingKindMileage, models.TrackingKindExact, models.TrackingKindTime:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный вид отслеживания"})
			return
		}
		delete(body, "name")
		delete(body, "kind")

		tracking := models.Tracking{
			CarID:                car.ID,
			Name:                 name,
			Kind:                 kind,
			NotificationSchedule: models.DefaultNotificationSchedule,
			ScheduleTemplate:     models.DefaultNotificationSchedule,
		}
		if err := tracking.ApplyPatch(body); err != nil {
			respondError(c, err)
			return
		}

		if err := db.Create(&tracking).Error; err != nil {
			respondError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"car_id":      car.ID,
			"tracking_id": tracking.ID,
			"kind":        kind,
		}).Info("Создано отслеживание")
		c.JSON(http.StatusCreated, tracking.Response(car.Mileage, time.Now()))
	}
}

// TrackingList возвращает отслеживания автомобиля с вычисленными остатками
func TrackingList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		var trackings []models.Tracking
		if err := db.Where("car_id = ?", car.ID).Order("id").Find(&trackings).Error; err != nil {
			respondError(c, err)
			return
		}

		now := time.Now()
		items := make([]models.TrackingResponse, 0, len(trackings))
		for i := range trackings {
			items = append(items, trackings[i].Response(car.Mileage, now))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// TrackingGet возвращает одно отслеживание
func TrackingGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID, ok := pathID(c, "id")
		if !ok {
			return
		}
		tracking, car, ok := ownedTracking(db, c, trackingID)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, tracking.Response(car.Mileage, time.Now()))
	}
}

// TrackingPatch частично обновляет отслеживание: затрагиваются только
// присланные ключи, поля чужого вида игнорируются
func TrackingPatch(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID, ok := pathID(c, "id")
		if !ok {
			return
		}
		tracking, car, ok := ownedTracking(db, c, trackingID)
		if !ok {
			return
		}

		var fields map[string]interface{}
		if err := c.ShouldBindJSON(&fields); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		if err := tracking.ApplyPatch(fields); err != nil {
			respondError(c, err)
			return
		}
		if err := db.Save(tracking).Error; err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, tracking.Response(car.Mileage, time.Now()))
	}
}

// TrackingDelete удаляет отслеживание по запросу владельца
func TrackingDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID, ok := pathID(c, "id")
		if !ok {
			return
		}
		tracking, _, ok := ownedTracking(db, c, trackingID)
		if !ok {
			return
		}

		if err := db.Delete(&models.Tracking{}, tracking.ID).Error; err != nil {
			respondError(c, err)
			return
		}
		logrus.WithField("tracking_id", tracking.ID).Info("Отслеживание удалено")
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// TrackingReset перезапускает отсчёт: для видов по пробегу - от текущего
// одометра (или присланного значения), для вида по времени - с присланной
// даты либо с сегодняшнего дня
func TrackingReset(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID, ok := pathID(c, "id")
		if !ok {
			return
		}
		tracking, car, ok := ownedTracking(db, c, trackingID)
		if !ok {
			return
		}

		var req struct {
			Mileage *int    `json:"mileage"`
			Date    *string `json:"date"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		var resetErr error
		if tracking.Kind == models.TrackingKindTime {
			anchor := time.Now()
			if req.Date != nil {
				parsed, err := time.ParseInLocation("2006-01-02", *req.Date, time.UTC)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Дата должна быть в формате 2006-01-02"})
					return
				}
				anchor = parsed
			}
			resetErr = tracking.ResetAtDate(anchor)
		} else {
			anchor := 0
			switch {
			case req.Mileage != nil:
				anchor = *req.Mileage
			case car.Mileage != nil:
				anchor = *car.Mileage
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "Пробег автомобиля неизвестен"})
				return
			}
			resetErr = tracking.ResetAtMileage(anchor)
		}
		if resetErr != nil {
			respondError(c, resetErr)
			return
		}

		if err := db.Save(tracking).Error; err != nil {
			respondError(c, err)
			return
		}
		logrus.WithField("tracking_id", tracking.ID).Info("Отсчёт отслеживания перезапущен")
		c.JSON(http.StatusOK, tracking.Response(car.Mileage, time.Now()))
	}
}

// TrackingToggleRepeat переключает признак повторения и возвращает новое состояние
func TrackingToggleRepeat(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID, ok := pathID(c, "id")
		if !ok {
			return
		}
		tracking, _, ok := ownedTracking(db, c, trackingID)
		if !ok {
			return
		}
		if tracking.Kind != models.TrackingKindTime {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Повторение применимо только к отслеживанию по времени"})
			return
		}

		tracking.IsRepeating = !tracking.IsRepeating
		if err := db.Model(&models.Tracking{}).Where("id = ?", tracking.ID).
			Update("is_repeating", tracking.IsRepeating).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_repeating": tracking.IsRepeating})
	}
}

// TrackingAcknowledge убирает подтверждённый порог из расписания уведомлений
// ("спасибо" в интерфейсе бота)
func TrackingAcknowledge(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID, ok := pathID(c, "id")
		if !ok {
			return
		}
		tracking, _, ok := ownedTracking(db, c, trackingID)
		if !ok {
			return
		}

		var req struct {
			Days *int `json:"days" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		tracking.AcknowledgeThreshold(*req.Days)
		if err := db.Model(&models.Tracking{}).Where("id = ?", tracking.ID).
			Update("notification_schedule", tracking.NotificationSchedule).Error; err != nil {
			respondError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{"tracking_id": tracking.ID, "days": *req.Days}).
			Info("Порог уведомления подтверждён")
		c.JSON(http.StatusOK, gin.H{"notification_schedule": models.ParseSchedule(tracking.NotificationSchedule)})
	}
}

// TrackingStop полностью отключает уведомления по отслеживанию
// ("не беспокоить" в интерфейсе бота)
func TrackingStop(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID, ok := pathID(c, "id")
		if !ok {
			return
		}
		tracking, _, ok := ownedTracking(db, c, trackingID)
		if !ok {
			return
		}

		if err := db.Model(&models.Tracking{}).Where("id = ?", tracking.ID).
			Update("notification_schedule", "").Error; err != nil {
			respondError(c, err)
			return
		}
		logrus.WithField("tracking_id", tracking.ID).Info("Уведомления по отслеживанию отключены")
		c.JSON(http.StatusOK, gin.H{"notification_schedule": []int{}})
	}
}
