package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"
	"github.com/UtkusMalen/CarTrackerBot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type nopNotifier struct{}

func (nopNotifier) NotifyMileageDue(context.Context, uint, string, uint) error { return nil }
func (nopNotifier) NotifyTimeTrackingDue(context.Context, uint, string, string, int, uint) error {
	return nil
}
func (nopNotifier) NotifyTrackingRenewed(context.Context, uint, string, string) error { return nil }
func (nopNotifier) NotifyRewardGranted(context.Context, uint, int, string) error      { return nil }

// setupEnv поднимает sqlite и роутер с подставной аутентификацией: user_id
// кладётся в контекст напрямую, без JWT
func setupEnv(t *testing.T, userID uint) (*gorm.DB, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Car{},
		&models.Tracking{},
		&models.Transaction{},
		&models.ExpenseCategory{},
		&models.Expense{},
		&models.FuelEntry{},
	))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})

	rewards := services.NewRewardService(db)
	mileage := services.NewMileageService(db, rewards, services.AllowanceConfig{KmPerDay: 100, KmPerNut: 10})

	r.POST("/cars/:id/trackings", TrackingCreate(db))
	r.GET("/cars/:id/trackings", TrackingList(db))
	r.PATCH("/trackings/:id", TrackingPatch(db))
	r.PUT("/trackings/:id/reset", TrackingReset(db))
	r.PUT("/trackings/:id/acknowledge", TrackingAcknowledge(db))
	r.PUT("/trackings/:id/stop", TrackingStop(db))
	r.POST("/cars/:id/mileage", ReportMileage(db, mileage, nopNotifier{}))
	r.POST("/cars/:id/expenses", ExpenseCreate(db))
	r.GET("/cars/:id/expenses", ExpenseList(db))

	return db, r
}

func seedOwnerAndCar(t *testing.T, db *gorm.DB, userID uint) *models.Car {
	t.Helper()
	require.NoError(t, db.Create(&models.User{ID: userID, FirstName: "owner"}).Error)
	mileage := 50000
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	car := models.Car{
		UserID:                userID,
		Name:                  "Octavia",
		Mileage:               &mileage,
		LastMileageUpdateAt:   day,
		LastAllowanceUpdateAt: day,
	}
	require.NoError(t, db.Create(&car).Error)
	return &car
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTrackingCreateAndList(t *testing.T) {
	db, r := setupEnv(t, 1)
	seedOwnerAndCar(t, db, 1)

	w := doJSON(t, r, http.MethodPost, "/cars/1/trackings", gin.H{
		"name":               "Замена масла",
		"kind":               "mileage",
		"interval_km":        10000,
		"last_reset_mileage": 50000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.TrackingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Configured)
	require.NotNil(t, created.RemainingKm)
	assert.Equal(t, 10000, *created.RemainingKm)
	assert.Equal(t, []int{7, 3, 1}, created.NotificationSchedule)

	w = doJSON(t, r, http.MethodGet, "/cars/1/trackings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []models.TrackingResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)
}

func TestTrackingCreateRejectsBadKind(t *testing.T) {
	db, r := setupEnv(t, 1)
	seedOwnerAndCar(t, db, 1)

	w := doJSON(t, r, http.MethodPost, "/cars/1/trackings", gin.H{"name": "x", "kind": "weekly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/cars/1/trackings", gin.H{"kind": "mileage"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackingHiddenFromStranger(t *testing.T) {
	db, r := setupEnv(t, 2) // запросы идут от чужого пользователя
	seedOwnerAndCar(t, db, 1)
	require.NoError(t, db.Create(&models.User{ID: 2, FirstName: "stranger"}).Error)

	w := doJSON(t, r, http.MethodGet, "/cars/1/trackings", nil)
	// чужой автомобиль неотличим от несуществующего
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackingPatchIgnoresForeignKindFields(t *testing.T) {
	db, r := setupEnv(t, 1)
	car := seedOwnerAndCar(t, db, 1)

	interval := 10000
	reset := 50000
	tracking := models.Tracking{
		CarID:                car.ID,
		Name:                 "Замена масла",
		Kind:                 models.TrackingKindMileage,
		IntervalKm:           &interval,
		LastResetMileage:     &reset,
		NotificationSchedule: models.DefaultNotificationSchedule,
		ScheduleTemplate:     models.DefaultNotificationSchedule,
	}
	require.NoError(t, db.Create(&tracking).Error)

	w := doJSON(t, r, http.MethodPatch, "/trackings/1", gin.H{
		"interval_km":   15000,
		"interval_days": 30, // поле чужого вида, должно игнорироваться
	})
	require.Equal(t, http.StatusOK, w.Code)

	var saved models.Tracking
	require.NoError(t, db.First(&saved, tracking.ID).Error)
	assert.Equal(t, 15000, *saved.IntervalKm)
	assert.Nil(t, saved.IntervalDays)

	w = doJSON(t, r, http.MethodPatch, "/trackings/1", gin.H{"bogus": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackingAcknowledgeAndStop(t *testing.T) {
	db, r := setupEnv(t, 1)
	car := seedOwnerAndCar(t, db, 1)

	interval := 30
	anchor := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tracking := models.Tracking{
		CarID:                car.ID,
		Name:                 "Страховка",
		Kind:                 models.TrackingKindTime,
		IntervalDays:         &interval,
		LastResetDate:        &anchor,
		NotificationSchedule: models.DefaultNotificationSchedule,
		ScheduleTemplate:     models.DefaultNotificationSchedule,
	}
	require.NoError(t, db.Create(&tracking).Error)

	w := doJSON(t, r, http.MethodPut, "/trackings/1/acknowledge", gin.H{"days": 7})
	require.Equal(t, http.StatusOK, w.Code)

	var saved models.Tracking
	require.NoError(t, db.First(&saved, tracking.ID).Error)
	assert.Equal(t, "3,1", saved.NotificationSchedule)
	// шаблон не тронут: при продлении расписание восстановится целиком
	assert.Equal(t, "7,3,1", saved.ScheduleTemplate)

	w = doJSON(t, r, http.MethodPut, "/trackings/1/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.First(&saved, tracking.ID).Error)
	assert.Equal(t, "", saved.NotificationSchedule)
}

func TestTrackingResetFromCarOdometer(t *testing.T) {
	db, r := setupEnv(t, 1)
	car := seedOwnerAndCar(t, db, 1)

	interval := 10000
	reset := 40000
	tracking := models.Tracking{
		CarID:                car.ID,
		Name:                 "Замена масла",
		Kind:                 models.TrackingKindMileage,
		IntervalKm:           &interval,
		LastResetMileage:     &reset,
		NotificationSchedule: models.DefaultNotificationSchedule,
		ScheduleTemplate:     models.DefaultNotificationSchedule,
	}
	require.NoError(t, db.Create(&tracking).Error)

	// без тела сброс берёт текущий одометр автомобиля
	w := doJSON(t, r, http.MethodPut, "/trackings/1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var saved models.Tracking
	require.NoError(t, db.First(&saved, tracking.ID).Error)
	assert.Equal(t, 50000, *saved.LastResetMileage)
}

func TestReportMileageEndpoint(t *testing.T) {
	db, r := setupEnv(t, 1)
	seedOwnerAndCar(t, db, 1)

	w := doJSON(t, r, http.MethodPost, "/cars/1/mileage", gin.H{"mileage": 50050})
	require.Equal(t, http.StatusOK, w.Code)

	var result services.MileageResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 50, result.MileageAdded)
	assert.Equal(t, 50050, result.NewMileage)

	var saved models.Car
	require.NoError(t, db.First(&saved, 1).Error)
	assert.Equal(t, 50050, *saved.Mileage)
}
