package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseCreateValidatesCategory(t *testing.T) {
	db, r := setupEnv(t, 1)
	seedOwnerAndCar(t, db, 1)

	shared := models.ExpenseCategory{Name: "Топливо", IsDefault: true}
	require.NoError(t, db.Create(&shared).Error)

	ownerID := uint(1)
	own := models.ExpenseCategory{UserID: &ownerID, Name: "Тюнинг"}
	require.NoError(t, db.Create(&own).Error)

	// чужая пользовательская категория
	strangerID := uint(2)
	require.NoError(t, db.Create(&models.User{ID: strangerID, FirstName: "stranger"}).Error)
	foreign := models.ExpenseCategory{UserID: &strangerID, Name: "Чужая"}
	require.NoError(t, db.Create(&foreign).Error)

	// общая категория принимается
	w := doJSON(t, r, http.MethodPost, "/cars/1/expenses", gin.H{
		"category_id": shared.ID,
		"amount":      1500.0,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// своя категория принимается
	w = doJSON(t, r, http.MethodPost, "/cars/1/expenses", gin.H{
		"category_id": own.ID,
		"amount":      500.0,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// чужая категория неотличима от несуществующей
	w = doJSON(t, r, http.MethodPost, "/cars/1/expenses", gin.H{
		"category_id": foreign.ID,
		"amount":      500.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// несуществующая категория отклоняется
	w = doJSON(t, r, http.MethodPost, "/cars/1/expenses", gin.H{
		"category_id": 999,
		"amount":      500.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.Expense{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestExpenseListJoinsCategoryNames(t *testing.T) {
	db, r := setupEnv(t, 1)
	seedOwnerAndCar(t, db, 1)

	category := models.ExpenseCategory{Name: "Мойка", IsDefault: true}
	require.NoError(t, db.Create(&category).Error)

	w := doJSON(t, r, http.MethodPost, "/cars/1/expenses", gin.H{
		"category_id": category.ID,
		"amount":      800.0,
		"spent_at":    "2026-03-05",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/cars/1/expenses", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items []models.ExpenseResponse `json:"items"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Мойка", resp.Items[0].CategoryName)
	assert.Equal(t, 800.0, resp.Items[0].Amount)
	assert.Equal(t, "2026-03-05", resp.Items[0].SpentAt)
	assert.EqualValues(t, 1, resp.Total)
}
