package handlers

import (
	"net/http"
	"os"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"
	"github.com/UtkusMalen/CarTrackerBot/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// IssueToken обменивает ключ шлюза на пользовательский JWT. Шлюз бота -
// единственный доверенный клиент: он аутентифицирует пользователей Telegram
// сам и приходит сюда уже с их идентификаторами. Пользователь создаётся при
// первом обращении.
func IssueToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID       uint    `json:"user_id" binding:"required"`
			Username     string  `json:"username"`
			FirstName    string  `json:"first_name"`
			ReferrerID   *uint   `json:"referrer_id"`
			ReferralCode *string `json:"referral_code"`
			GatewayKey   string  `json:"gateway_key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		if !gatewayKeyValid(req.GatewayKey) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный ключ шлюза"})
			return
		}

		user := models.User{
			ID:           req.UserID,
			Username:     req.Username,
			FirstName:    req.FirstName,
			ReferrerID:   req.ReferrerID,
			ReferralCode: req.ReferralCode,
		}
		// существующий пользователь не перезаписывается, в том числе его реферальные поля
		if err := db.Where("id = ?", req.UserID).FirstOrCreate(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать пользователя"})
			return
		}

		token, err := utils.GenerateToken(user.ID, "user")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось выписать токен"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// gatewayKeyValid сравнивает ключ с bcrypt-хэшем из окружения; если задан
// только открытый ключ, сравнивает напрямую
func gatewayKeyValid(key string) bool {
	if hash := os.Getenv("BOT_GATEWAY_KEY_HASH"); hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
	}
	expected := os.Getenv("BOT_GATEWAY_KEY")
	return expected != "" && key == expected
}
