package models

import (
	"time"
)

// ExpenseCategory - категория расходов: общие (is_default) плюс
// пользовательские
type ExpenseCategory struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	UserID    *uint  `json:"user_id,omitempty" gorm:"column:user_id;index"`
	Name      string `json:"name" gorm:"column:name;not null;type:varchar(255)"`
	IsDefault bool   `json:"is_default" gorm:"column:is_default;not null;default:false"`
}

type Expense struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CarID       uint      `json:"car_id" gorm:"column:car_id;not null;index"`
	CategoryID  uint      `json:"category_id" gorm:"column:category_id;not null"`
	Amount      float64   `json:"amount" gorm:"column:amount;not null"`
	Mileage     *int      `json:"mileage,omitempty" gorm:"column:mileage"`
	Description string    `json:"description" gorm:"column:description;type:text"`
	SpentAt     time.Time `json:"spent_at" gorm:"column:spent_at;type:date"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	Car      Car             `json:"-" gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE"`
	Category ExpenseCategory `json:"-" gorm:"foreignKey:CategoryID"`
}

type ExpenseResponse struct {
	ID           uint    `json:"id"`
	CategoryName string  `json:"category_name"`
	Amount       float64 `json:"amount"`
	Mileage      *int    `json:"mileage,omitempty"`
	Description  string  `json:"description,omitempty"`
	SpentAt      string  `json:"spent_at"`
}

// ExpenseSummary - сводка расходов по автомобилю
type ExpenseSummary struct {
	ByCategory map[string]float64 `json:"by_category"`
	FuelTotal  float64            `json:"fuel_total"`
	ThisMonth  float64            `json:"this_month"`
	LastMonth  float64            `json:"last_month"`
	ThisYear   float64            `json:"this_year"`
	LastYear   float64            `json:"last_year"`
}
