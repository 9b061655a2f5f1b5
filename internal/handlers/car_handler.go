package handlers

import (
	"net/http"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"
	"github.com/UtkusMalen/CarTrackerBot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CarCreate добавляет автомобиль. Первый автомобиль становится активным, за
// добавление первого автомобиля выдаётся разовая награда.
func CarCreate(db *gorm.DB, rewards *services.RewardService, notifier services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")

		var req struct {
			Name    string `json:"name" binding:"required"`
			Mileage *int   `json:"mileage"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}
		if req.Mileage != nil && *req.Mileage < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Пробег не может быть отрицательным"})
			return
		}

		var existing int64
		if err := db.Model(&models.Car{}).Where("user_id = ? AND name = ?", userID, req.Name).Count(&existing).Error; err != nil {
			respondError(c, err)
			return
		}
		if existing > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Автомобиль с таким названием уже есть"})
			return
		}

		today := time.Now()
		day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		car := models.Car{
			UserID:                userID,
			Name:                  req.Name,
			Mileage:               req.Mileage,
			LastMileageUpdateAt:   day,
			LastAllowanceUpdateAt: day,
		}
		if err := db.Create(&car).Error; err != nil {
			respondError(c, err)
			return
		}
		// новый автомобиль сразу становится активным
		if err := db.Model(&models.User{}).Where("id = ?", userID).Update("active_car_id", car.ID).Error; err != nil {
			respondError(c, err)
			return
		}

		amount := envInt("REWARD_ADD_CAR", 200)
		granted, err := rewards.GrantOneTime(userID, amount, services.RewardAddCar)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Не удалось выдать награду за добавление авто")
		} else if granted {
			if nerr := notifier.NotifyRewardGranted(c.Request.Context(), userID, amount, services.RewardAddCar); nerr != nil {
				logrus.WithError(nerr).WithField("user_id", userID).Warn("Не удалось отправить уведомление о награде")
			}
		}

		logrus.WithFields(logrus.Fields{"user_id": userID, "car_id": car.ID}).Info("Добавлен автомобиль")
		c.JSON(http.StatusCreated, carResponse(db, &car, true))
	}
}

// CarList возвращает автомобили пользователя с их отслеживаниями
func CarList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			respondError(c, err)
			return
		}

		var cars []models.Car
		if err := db.Where("user_id = ?", userID).Order("id").Find(&cars).Error; err != nil {
			respondError(c, err)
			return
		}

		resp := make([]models.CarResponse, 0, len(cars))
		for i := range cars {
			active := user.ActiveCarID != nil && *user.ActiveCarID == cars[i].ID
			resp = append(resp, carResponse(db, &cars[i], active))
		}
		c.JSON(http.StatusOK, gin.H{"items": resp})
	}
}

// CarActivate делает автомобиль активным
func CarActivate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		err := db.Model(&models.User{}).Where("id = ?", car.UserID).
			Update("active_car_id", car.ID).Error
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"active_car_id": car.ID})
	}
}

// CarDelete удаляет автомобиль вместе с его записями; висячая ссылка на
// активный автомобиль очищается в той же транзакции
func CarDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.User{}).Where("active_car_id = ?", car.ID).
				Update("active_car_id", nil).Error; err != nil {
				return err
			}
			for _, m := range []interface{}{&models.Tracking{}, &models.Note{}, &models.Expense{}, &models.FuelEntry{}} {
				if err := tx.Where("car_id = ?", car.ID).Delete(m).Error; err != nil {
					return err
				}
			}
			return tx.Delete(&models.Car{}, car.ID).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}

		logrus.WithField("car_id", car.ID).Info("Автомобиль удалён")
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// CarUpdateDetails частично обновляет профиль автомобиля. Когда профиль
// оказывается заполнен целиком, выдаётся разовая награда.
func CarUpdateDetails(db *gorm.DB, rewards *services.RewardService, notifier services.Notifier) gin.HandlerFunc {
	allowed := map[string]bool{
		"name": true, "brand": true, "model": true, "year": true,
		"engine_volume": true, "fuel_type": true, "transmission": true,
		"vin": true, "plate_number": true, "color": true,
	}

	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		var fields map[string]string
		if err := c.ShouldBindJSON(&fields); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		updates := map[string]interface{}{}
		for key, value := range fields {
			if !allowed[key] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестное поле: " + key})
				return
			}
			updates[key] = value
		}
		if len(updates) == 0 {
			c.JSON(http.StatusOK, carResponse(db, car, false))
			return
		}

		if err := db.Model(&models.Car{}).Where("id = ?", car.ID).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}

		var updated models.Car
		if err := db.First(&updated, car.ID).Error; err != nil {
			respondError(c, err)
			return
		}

		if updated.ProfileComplete() {
			amount := envInt("REWARD_FILL_PROFILE", 500)
			granted, err := rewards.GrantOneTime(updated.UserID, amount, services.RewardFillProfile)
			if err != nil {
				logrus.WithError(err).WithField("user_id", updated.UserID).Error("Не удалось выдать награду за профиль")
			} else if granted {
				logrus.WithFields(logrus.Fields{"user_id": updated.UserID, "amount": amount}).
					Info("Выдана награда за заполнение профиля авто")
				if nerr := notifier.NotifyRewardGranted(c.Request.Context(), updated.UserID, amount, services.RewardFillProfile); nerr != nil {
					logrus.WithError(nerr).Warn("Не удалось отправить уведомление о награде")
				}
			}
		}

		c.JSON(http.StatusOK, carResponse(db, &updated, false))
	}
}

// ReportMileage принимает отчёт о текущем пробеге и возвращает начисленные
// орехи и остаток бюджета
func ReportMileage(db *gorm.DB, mileage *services.MileageService, notifier services.Notifier) gin.HandlerFunc {
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
			Mileage *int `json:"mileage" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		result, err := mileage.ReportMileage(car.ID, *req.Mileage, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}

		if result.NutsAwarded > 0 {
			desc := "Начисление за пробег"
			if nerr := notifier.NotifyRewardGranted(c.Request.Context(), car.UserID, result.NutsAwarded, desc); nerr != nil {
				logrus.WithError(nerr).WithField("user_id", car.UserID).Warn("Не удалось отправить уведомление о награде")
			}
		}

		c.JSON(http.StatusOK, result)
	}
}

// SnoozeMileage откладывает напоминание об обновлении пробега
func SnoozeMileage(db *gorm.DB, mileage *services.MileageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		if err := mileage.SnoozeMileageReminder(car.ID, time.Now()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "snoozed"})
	}
}

func carResponse(db *gorm.DB, car *models.Car, active bool) models.CarResponse {
	resp := models.CarResponse{
		ID:                  car.ID,
		Name:                car.Name,
		Mileage:             car.Mileage,
		LastMileageUpdateAt: car.LastMileageUpdateAt.Format("2006-01-02"),
		MileageAllowance:    car.MileageAllowance,
		IsActive:            active,
		ProfileComplete:     car.ProfileComplete(),
		Brand:               car.Brand,
		Model:               car.Model,
		Year:                car.Year,
		EngineVolume:        car.EngineVolume,
		FuelType:            car.FuelType,
		Transmission:        car.Transmission,
		Vin:                 car.Vin,
		PlateNumber:         car.PlateNumber,
		Color:               car.Color,
	}

	var trackings []models.Tracking
	if err := db.Where("car_id = ?", car.ID).Order("id").Find(&trackings).Error; err == nil {
		now := time.Now()
		for i := range trackings {
			resp.Trackings = append(resp.Trackings, trackings[i].Response(car.Mileage, now))
		}
	}
	return resp
}
