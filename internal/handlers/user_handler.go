package handlers

import (
	"net/http"
	"os"
	"strconv"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"
	"github.com/UtkusMalen/CarTrackerBot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GetCurrentUser возвращает профиль пользователя с балансом, местом в
// рейтинге и количеством приглашённых
func GetCurrentUser(db *gorm.DB, rewards *services.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			respondError(c, err)
			return
		}

		rank, err := rewards.Rank(userID)
		if err != nil {
			respondError(c, err)
			return
		}

		var referrals int64
		if err := db.Model(&models.User{}).Where("referrer_id = ?", userID).Count(&referrals).Error; err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.UserResponse{
			ID:                    user.ID,
			Username:              user.Username,
			FirstName:             user.FirstName,
			BalanceNuts:           user.BalanceNuts,
			Rank:                  rank,
			ActiveCarID:           user.ActiveCarID,
			MileageReminderPeriod: user.MileageReminderPeriod,
			ReferralsCount:        referrals,
		})
	}
}

// UpdateReminderPeriod настраивает период напоминаний об обновлении пробега
func UpdateReminderPeriod(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")

		var req struct {
			Days int `json:"days" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Days < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Период должен быть положительным числом дней"})
			return
		}

		err := db.Model(&models.User{}).Where("id = ?", userID).
			Update("mileage_reminder_period", req.Days).Error
		if err != nil {
			respondError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{"user_id": userID, "days": req.Days}).
			Info("Пользователь изменил период напоминаний о пробеге")
		c.JSON(http.StatusOK, gin.H{"mileage_reminder_period": req.Days})
	}
}

// GetTransactions возвращает страницу истории транзакций пользователя
func GetTransactions(rewards *services.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")
		page := pageParam(c)

		list, total, err := rewards.History(userID, page, 10)
		if err != nil {
			respondError(c, err)
			return
		}

		items := make([]models.TransactionResponse, 0, len(list))
		for _, t := range list {
			items = append(items, models.TransactionResponse{
				Amount:      t.Amount,
				Description: t.Description,
				CreatedAt:   t.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page})
	}
}

// GetLeaderboard возвращает страницу рейтинга по балансу орехов
func GetLeaderboard(rewards *services.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := rewards.Leaderboard(pageParam(c), 10)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": entries})
	}
}

// GrantReferralBonus выдаёт реферальные бонусы, когда приглашённый проявил
// первую активность. Вызывается шлюзом от имени приглашённого.
func GrantReferralBonus(db *gorm.DB, rewards *services.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		refereeID := c.GetUint("user_id")

		var referee models.User
		if err := db.First(&referee, refereeID).Error; err != nil {
			respondError(c, err)
			return
		}
		if referee.ReferrerID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Пользователь зарегистрирован без приглашения"})
			return
		}

		referrerAmount := envInt("REFERRAL_BONUS_REFERRER", 300)
		refereeAmount := envInt("REFERRAL_BONUS_REFEREE", 100)
		if err := rewards.GrantReferralBonus(*referee.ReferrerID, refereeID, referrerAmount, refereeAmount); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// GrantOneTimeReward - административная выдача разовой награды
func GrantOneTimeReward(rewards *services.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID      uint   `json:"user_id" binding:"required"`
			Amount      int    `json:"amount" binding:"required"`
			Description string `json:"description" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		granted, err := rewards.GrantOneTime(req.UserID, req.Amount, req.Description)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"granted": granted})
	}
}

func envInt(name string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil && v > 0 {
		return v
	}
	return fallback
}
