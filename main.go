package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/db"
	"github.com/UtkusMalen/CarTrackerBot/internal/jobs"
	"github.com/UtkusMalen/CarTrackerBot/internal/middleware"
	"github.com/UtkusMalen/CarTrackerBot/internal/models"
	"github.com/UtkusMalen/CarTrackerBot/internal/routes"
	"github.com/UtkusMalen/CarTrackerBot/internal/services"
	"github.com/UtkusMalen/CarTrackerBot/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*gorm.DB, error) {
	var database *gorm.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		database, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})
		if err == nil {
			// Настройка пула соединений с БД
			sqlDB, err := database.DB()
			if err != nil {
				return nil, fmt.Errorf("не удалось получить доступ к sql.DB: %w", err)
			}

			maxOpenConns := 100
			maxIdleConns := 25
			connMaxLifetime := 60

			if val, err := strconv.Atoi(os.Getenv("DB_MAX_OPEN_CONNS")); err == nil && val > 0 {
				maxOpenConns = val
			}
			if val, err := strconv.Atoi(os.Getenv("DB_MAX_IDLE_CONNS")); err == nil && val > 0 {
				maxIdleConns = val
			}
			if val, err := strconv.Atoi(os.Getenv("DB_CONN_MAX_LIFETIME_MINUTES")); err == nil && val > 0 {
				connMaxLifetime = val
			}

			sqlDB.SetMaxOpenConns(maxOpenConns)
			sqlDB.SetMaxIdleConns(maxIdleConns)
			sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Minute)

			return database, nil
		}
		logrus.WithError(err).Warnf("Попытка подключения к БД %d из %d не удалась", i+1, maxAttempts)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("не удалось подключиться к базе данных после %d попыток: %v", maxAttempts, err)
}

// seedExpenseCategories создаёт общие категории расходов, если их ещё нет
func seedExpenseCategories(database *gorm.DB) error {
	defaults := []string{"Топливо", "Мойка", "Шиномонтаж", "Страховка", "Штрафы", "Парковка", "Запчасти", "Прочее"}
	for _, name := range defaults {
		category := models.ExpenseCategory{Name: name, IsDefault: true}
		err := database.Where("name = ? AND is_default = ?", name, true).
			FirstOrCreate(&category).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	// Устанавливаем режим релиза для продакшена
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := godotenv.Load(); err != nil {
		logrus.Info("Файл .env не найден, используем переменные окружения")
	}

	// Настраиваем логирование
	if os.Getenv("LOG_FORMAT") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	// Подключение к базе данных
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
	)

	database, err := connectWithRetry(dsn, 5, 5*time.Second)
	if err != nil {
		logrus.WithError(err).Fatal("Ошибка подключения к базе данных")
	}

	// Подключение к Redis; без него работаем, просто без кэша уведомлений
	redisClient, err := db.NewRedisClient()
	if err != nil {
		logrus.WithError(err).Warn("Redis недоступен, продолжаем без кэширования")
		redisClient = nil
	} else {
		logrus.Info("Успешное подключение к Redis")
		defer redisClient.Close()
	}

	// Автоматическая миграция моделей
	if err := database.AutoMigrate(
		&models.User{},
		&models.Car{},
		&models.Tracking{},
		&models.Transaction{},
		&models.Note{},
		&models.ExpenseCategory{},
		&models.Expense{},
		&models.FuelEntry{},
	); err != nil {
		logrus.WithError(err).Fatal("Ошибка миграции базы данных")
	}

	if err := seedExpenseCategories(database); err != nil {
		logrus.WithError(err).Fatal("Ошибка создания категорий расходов")
	}

	// Запускаем WebSocket менеджер
	websocket.StartManager()

	// Сервисный слой
	rewards := services.NewRewardService(database)
	mileage := services.NewMileageService(database, rewards, services.AllowanceConfigFromEnv())
	notifier := services.NewGatewayNotifier(redisClient)

	// Фоновые обходы: уведомления по отслеживаниям и напоминания о пробеге
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	go jobs.NewNotificationScheduler(database, notifier).Run(jobsCtx)
	go jobs.NewMileageReminderSweep(database, notifier).Run(jobsCtx)

	// Создаем Gin роутер
	r := gin.New()

	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// Добавляем middleware для сбора метрик
	r.Use(middleware.PrometheusMiddleware())

	r.SetTrustedProxies([]string{"127.0.0.1"})

	// Настройка CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Эндпоинт для метрик Prometheus
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Проверка работоспособности системы
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// API группа
	api := r.Group("/api")
	routes.SetupRoutes(api, database, rewards, mileage, notifier)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logrus.Infof("Сервер запущен на порту %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Ошибка запуска сервера")
		}
	}()

	// Ожидаем сигнал для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Получен сигнал завершения, закрываем соединения...")

	// останавливаем фоновые обходы вместе с сервером
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Ошибка при graceful shutdown")
	}

	logrus.Info("Сервер корректно завершил работу")
}
