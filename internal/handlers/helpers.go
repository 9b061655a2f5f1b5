package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError переводит ошибки доменного слоя в HTTP-статусы:
// ValidationError - 400, отсутствие записи - 404, остальное - 500
func respondError(c *gin.Context, err error) {
	var vErr models.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Запись не найдена"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
	}
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный идентификатор"})
		return 0, false
	}
	return uint(id), true
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// ownedCar загружает автомобиль и проверяет, что он принадлежит пользователю
// из токена
func ownedCar(db *gorm.DB, c *gin.Context, carID uint) (*models.Car, bool) {
	var car models.Car
	if err := db.First(&car, carID).Error; err != nil {
		respondError(c, err)
		return nil, false
	}
	if car.UserID != c.GetUint("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Запись не найдена"})
		return nil, false
	}
	return &car, true
}

// ownedTracking загружает отслеживание вместе с автомобилем и проверяет владельца
func ownedTracking(db *gorm.DB, c *gin.Context, trackingID uint) (*models.Tracking, *models.Car, bool) {
	var tracking models.Tracking
	if err := db.First(&tracking, trackingID).Error; err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	car, ok := ownedCar(db, c, tracking.CarID)
	if !ok {
		return nil, nil, false
	}
	return &tracking, car, true
}
