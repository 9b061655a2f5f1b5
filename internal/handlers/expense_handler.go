package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ExpenseCategoryList возвращает общие и пользовательские категории расходов
func ExpenseCategoryList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")

		var categories []models.ExpenseCategory
		err := db.Where("is_default = ? OR user_id = ?", true, userID).
			Order("is_default DESC, name ASC").
			Find(&categories).Error
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": categories})
	}
}

// ExpenseCategoryCreate добавляет пользовательскую категорию
func ExpenseCategoryCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")

		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Название категории обязательно"})
			return
		}

		category := models.ExpenseCategory{UserID: &userID, Name: req.Name}
		if err := db.Create(&category).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func ExpenseCreate(db *gorm.DB) gin.HandlerFunc {
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
			CategoryID  uint    `json:"category_id" binding:"required"`
			Amount      float64 `json:"amount" binding:"required"`
			Mileage     *int    `json:"mileage"`
			Description string  `json:"description"`
			SpentAt     string  `json:"spent_at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}
		if req.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Сумма должна быть положительной"})
			return
		}

		spentAt := time.Now()
		if req.SpentAt != "" {
			parsed, err := time.ParseInLocation("2006-01-02", req.SpentAt, time.UTC)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Дата должна быть в формате 2006-01-02"})
				return
			}
			spentAt = parsed
		}

		// категория должна быть общей или принадлежать владельцу автомобиля
		var category models.ExpenseCategory
		err := db.Where("id = ? AND (is_default = ? OR user_id = ?)", req.CategoryID, true, car.UserID).
			First(&category).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Категория не найдена"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		expense := models.Expense{
			CarID:       car.ID,
			CategoryID:  req.CategoryID,
			Amount:      req.Amount,
			Mileage:     req.Mileage,
			Description: req.Description,
			SpentAt:     spentAt,
		}
		if err := db.Create(&expense).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, expense)
	}
}

func ExpenseList(db *gorm.DB) gin.HandlerFunc {
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
		if err := db.Model(&models.Expense{}).Where("car_id = ?", car.ID).Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}

		var rows []struct {
			models.Expense
			CategoryName string
		}
		err := db.Table("expenses").
			Select("expenses.*, expense_categories.name as category_name").
			Joins("JOIN expense_categories ON expense_categories.id = expenses.category_id").
			Where("expenses.car_id = ?", car.ID).
			Order("expenses.spent_at DESC, expenses.id DESC").
			Limit(10).Offset((page - 1) * 10).
			Scan(&rows).Error
		if err != nil {
			respondError(c, err)
			return
		}

		items := make([]models.ExpenseResponse, 0, len(rows))
		for _, row := range rows {
			items = append(items, models.ExpenseResponse{
				ID:           row.ID,
				CategoryName: row.CategoryName,
				Amount:       row.Amount,
				Mileage:      row.Mileage,
				Description:  row.Description,
				SpentAt:      row.SpentAt.Format("2006-01-02"),
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page})
	}
}

func ExpenseDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		expenseID, ok := pathID(c, "id")
		if !ok {
			return
		}

		var expense models.Expense
		if err := db.First(&expense, expenseID).Error; err != nil {
			respondError(c, err)
			return
		}
		if _, ok := ownedCar(db, c, expense.CarID); !ok {
			return
		}

		if err := db.Delete(&models.Expense{}, expense.ID).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// ExpenseSummary собирает сводку: суммы по категориям за всё время, расходы
// за текущий и прошлый месяц и год, плюс общая сумма заправок
func ExpenseSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		summary := models.ExpenseSummary{ByCategory: map[string]float64{}}

		var byCategory []struct {
			Name  string
			Total float64
		}
		err := db.Table("expenses").
			Select("expense_categories.name, SUM(expenses.amount) as total").
			Joins("JOIN expense_categories ON expense_categories.id = expenses.category_id").
			Where("expenses.car_id = ?", car.ID).
			Group("expense_categories.name").
			Scan(&byCategory).Error
		if err != nil {
			respondError(c, err)
			return
		}
		for _, row := range byCategory {
			summary.ByCategory[row.Name] = row.Total
		}

		var fuelTotal *float64
		if err := db.Model(&models.FuelEntry{}).Where("car_id = ?", car.ID).
			Select("SUM(total_sum)").Scan(&fuelTotal).Error; err != nil {
			respondError(c, err)
			return
		}
		if fuelTotal != nil {
			summary.FuelTotal = *fuelTotal
		}

		var expenses []models.Expense
		if err := db.Select("amount, spent_at").Where("car_id = ?", car.ID).Find(&expenses).Error; err != nil {
			respondError(c, err)
			return
		}

		today := time.Now()
		lastMonth := today.AddDate(0, 0, -today.Day()) // последний день прошлого месяца
		for _, e := range expenses {
			if e.SpentAt.Year() == today.Year() {
				summary.ThisYear += e.Amount
				if e.SpentAt.Month() == today.Month() {
					summary.ThisMonth += e.Amount
				}
			} else if e.SpentAt.Year() == today.Year()-1 {
				summary.LastYear += e.Amount
			}
			if e.SpentAt.Year() == lastMonth.Year() && e.SpentAt.Month() == lastMonth.Month() {
				summary.LastMonth += e.Amount
			}
		}

		c.JSON(http.StatusOK, summary)
	}
}
