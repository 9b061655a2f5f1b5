package models

import (
	"time"
)

type Note struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CarID     uint      `json:"car_id" gorm:"column:car_id;not null;index"`
	Text      string    `json:"text" gorm:"column:text;not null;type:text"`
	IsPinned  bool      `json:"is_pinned" gorm:"column:is_pinned;not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	Car Car `json:"-" gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE"`
}
