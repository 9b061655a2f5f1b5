package routes

import (
	"github.com/UtkusMalen/CarTrackerBot/internal/handlers"
	"github.com/UtkusMalen/CarTrackerBot/internal/middleware"
	"github.com/UtkusMalen/CarTrackerBot/internal/services"
	"github.com/UtkusMalen/CarTrackerBot/internal/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SetupRoutes(api *gin.RouterGroup, db *gorm.DB, rewards *services.RewardService, mileage *services.MileageService, notifier services.Notifier) {
	// Публичный маршрут аутентификации: шлюз бота обменивает свой ключ на JWT
	auth := api.Group("/auth")
	{
		auth.POST("/token", handlers.IssueToken(db))
	}

	// Защищенные маршруты (требуют аутентификации)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth())
	{
		// Пользователь, награды и рейтинг
		protected.GET("/user", handlers.GetCurrentUser(db, rewards))
		protected.PUT("/user/reminder-period", handlers.UpdateReminderPeriod(db))
		protected.GET("/user/transactions", handlers.GetTransactions(rewards))
		protected.GET("/leaderboard", handlers.GetLeaderboard(rewards))
		protected.POST("/user/referral-bonus", handlers.GrantReferralBonus(db, rewards))

		// Роуты для автомобилей
		protected.POST("/cars", handlers.CarCreate(db, rewards, notifier))
		protected.GET("/cars", handlers.CarList(db))
		protected.PUT("/cars/:id/activate", handlers.CarActivate(db))
		protected.PUT("/cars/:id/details", handlers.CarUpdateDetails(db, rewards, notifier))
		protected.DELETE("/cars/:id", handlers.CarDelete(db))

		// Пробег: отчёт и откладывание напоминания
		protected.POST("/cars/:id/mileage", handlers.ReportMileage(db, mileage, notifier))
		protected.PUT("/cars/:id/mileage/snooze", handlers.SnoozeMileage(db, mileage))

		// Роуты для отслеживаний
		protected.POST("/cars/:id/trackings", handlers.TrackingCreate(db))
		protected.GET("/cars/:id/trackings", handlers.TrackingList(db))
		protected.GET("/trackings/:id", handlers.TrackingGet(db))
		protected.PATCH("/trackings/:id", handlers.TrackingPatch(db))
		protected.DELETE("/trackings/:id", handlers.TrackingDelete(db))
		protected.PUT("/trackings/:id/reset", handlers.TrackingReset(db))
		protected.PUT("/trackings/:id/repeat", handlers.TrackingToggleRepeat(db))
		protected.PUT("/trackings/:id/acknowledge", handlers.TrackingAcknowledge(db))
		protected.PUT("/trackings/:id/stop", handlers.TrackingStop(db))

		// Роуты для заметок
		protected.POST("/cars/:id/notes", handlers.NoteCreate(db))
		protected.GET("/cars/:id/notes", handlers.NoteList(db))
		protected.PUT("/notes/:id/pin", handlers.NoteTogglePin(db))
		protected.DELETE("/notes/:id", handlers.NoteDelete(db))

		// Роуты для расходов
		protected.GET("/expense-categories", handlers.ExpenseCategoryList(db))
		protected.POST("/expense-categories", handlers.ExpenseCategoryCreate(db))
		protected.POST("/cars/:id/expenses", handlers.ExpenseCreate(db))
		protected.GET("/cars/:id/expenses", handlers.ExpenseList(db))
		protected.GET("/cars/:id/expenses/summary", handlers.ExpenseSummary(db))
		protected.DELETE("/expenses/:id", handlers.ExpenseDelete(db))

		// Роуты для заправок
		protected.POST("/cars/:id/fuel", handlers.FuelCreate(db))
		protected.GET("/cars/:id/fuel", handlers.FuelList(db))
		protected.GET("/cars/:id/fuel/summary", handlers.FuelSummary(db))
		protected.DELETE("/fuel/:id", handlers.FuelDelete(db))

		// WebSocket подключение для получения уведомлений в реальном времени
		protected.GET("/ws", websocket.Handler())
	}

	// Административные маршруты
	admin := api.Group("/admin")
	admin.Use(middleware.JWTAuth(), middleware.AdminOnly())
	{
		admin.POST("/rewards", handlers.GrantOneTimeReward(rewards))
	}
}
