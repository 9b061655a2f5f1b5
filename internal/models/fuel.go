package models

import (
	"time"
)

// FuelEntry - запись заправки. После закрытия интервала "полный бак - полный
// бак" на предыдущую полную запись записывается рассчитанный расход
type FuelEntry struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	CarID           uint      `json:"car_id" gorm:"column:car_id;not null;index"`
	Mileage         int       `json:"mileage" gorm:"column:mileage;not null"`
	Liters          float64   `json:"liters" gorm:"column:liters;not null"`
	TotalSum        *float64  `json:"total_sum,omitempty" gorm:"column:total_sum"`
	IsFullTank      bool      `json:"is_full_tank" gorm:"column:is_full_tank;not null;default:false"`
	FuelConsumption *float64  `json:"fuel_consumption,omitempty" gorm:"column:fuel_consumption"`
	FilledAt        time.Time `json:"filled_at" gorm:"column:filled_at;type:date"`
	CreatedAt       time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	Car Car `json:"-" gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE"`
}

type FuelEntryResponse struct {
	ID              uint     `json:"id"`
	Mileage         int      `json:"mileage"`
	Liters          float64  `json:"liters"`
	TotalSum        *float64 `json:"total_sum,omitempty"`
	IsFullTank      bool     `json:"is_full_tank"`
	FuelConsumption *float64 `json:"fuel_consumption,omitempty"`
	FilledAt        string   `json:"filled_at"`
	Distance        int      `json:"distance"`
}

// FuelSummary - сводка заправок за текущий месяц, прошлый месяц и всё время
type FuelSummary struct {
	LitersThisMonth float64 `json:"liters_this_month"`
	LitersLastMonth float64 `json:"liters_last_month"`
	LitersAllTime   float64 `json:"liters_all_time"`
	SumThisMonth    float64 `json:"sum_this_month"`
	SumLastMonth    float64 `json:"sum_last_month"`
	SumAllTime      float64 `json:"sum_all_time"`
}
