package models

import (
	"time"
)

type Car struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID uint   `json:"user_id" gorm:"column:user_id;not null;index"`
	Name   string `json:"name" gorm:"column:name;not null;type:varchar(255)"`

	// Пробег неизвестен, пока владелец не сообщил его в первый раз
	Mileage             *int      `json:"mileage,omitempty" gorm:"column:mileage"`
	LastMileageUpdateAt time.Time `json:"last_mileage_update_at" gorm:"column:last_mileage_update_at;type:date"`

	// Бюджет вознаграждаемых километров (см. services.CalculateAllowance)
	MileageAllowance      int       `json:"mileage_allowance" gorm:"column:mileage_allowance;not null;default:0"`
	LastAllowanceUpdateAt time.Time `json:"last_allowance_update_at" gorm:"column:last_allowance_update_at;type:date"`

	// Профиль автомобиля; за полное заполнение начисляется разовая награда
	Brand        string `json:"brand" gorm:"column:brand;type:varchar(255)"`
	Model        string `json:"model" gorm:"column:model;type:varchar(255)"`
	Year         string `json:"year" gorm:"column:year;type:varchar(16)"`
	EngineVolume string `json:"engine_volume" gorm:"column:engine_volume;type:varchar(32)"`
	FuelType     string `json:"fuel_type" gorm:"column:fuel_type;type:varchar(32)"`
	Transmission string `json:"transmission" gorm:"column:transmission;type:varchar(32)"`
	Vin          string `json:"vin" gorm:"column:vin;type:varchar(64)"`
	PlateNumber  string `json:"plate_number" gorm:"column:plate_number;type:varchar(32)"`
	Color        string `json:"color" gorm:"column:color;type:varchar(64)"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Trackings []Tracking `json:"-" gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE"`
}

// ProfileFields возвращает поля профиля в порядке заполнения анкеты
func (c *Car) ProfileFields() []string {
	return []string{c.Brand, c.Model, c.Year, c.EngineVolume, c.FuelType, c.Transmission, c.Vin, c.PlateNumber, c.Color}
}

// ProfileComplete сообщает, заполнены ли все поля профиля
func (c *Car) ProfileComplete() bool {
	for _, f := range c.ProfileFields() {
		if f == "" {
			return false
		}
	}
	return true
}

type CarResponse struct {
	ID                  uint               `json:"id"`
	Name                string             `json:"name"`
	Mileage             *int               `json:"mileage,omitempty"`
	LastMileageUpdateAt string             `json:"last_mileage_update_at"`
	MileageAllowance    int                `json:"mileage_allowance"`
	IsActive            bool               `json:"is_active"`
	ProfileComplete     bool               `json:"profile_complete"`
	Brand               string             `json:"brand,omitempty"`
	Model               string             `json:"model,omitempty"`
	Year                string             `json:"year,omitempty"`
	EngineVolume        string             `json:"engine_volume,omitempty"`
	FuelType            string             `json:"fuel_type,omitempty"`
	Transmission        string             `json:"transmission,omitempty"`
	Vin                 string             `json:"vin,omitempty"`
	PlateNumber         string             `json:"plate_number,omitempty"`
	Color               string             `json:"color,omitempty"`
	Trackings           []TrackingResponse `json:"trackings,omitempty"`
}
