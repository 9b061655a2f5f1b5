package models

import (
	"time"
)

type User struct {
	// ID совпадает с идентификатором пользователя в Telegram, поэтому без автоинкремента
	ID                    uint      `json:"id" gorm:"primaryKey;column:id"`
	Username              string    `json:"username" gorm:"column:username;type:varchar(255)"`
	FirstName             string    `json:"first_name" gorm:"column:first_name;type:varchar(255)"`
	BalanceNuts           int       `json:"balance_nuts" gorm:"column:balance_nuts;not null;default:0"`
	ActiveCarID           *uint     `json:"active_car_id,omitempty" gorm:"column:active_car_id"`
	MileageReminderPeriod int       `json:"mileage_reminder_period" gorm:"column:mileage_reminder_period;not null;default:1"`
	ReferrerID            *uint     `json:"referrer_id,omitempty" gorm:"column:referrer_id;index"`
	ReferralCode          *string   `json:"referral_code,omitempty" gorm:"column:referral_code;type:varchar(64);index"`
	CreatedAt             time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	Cars                  []Car     `json:"-" gorm:"foreignKey:UserID"`
}

type UserResponse struct {
	ID                    uint   `json:"id"`
	Username              string `json:"username"`
	FirstName             string `json:"first_name"`
	BalanceNuts           int    `json:"balance_nuts"`
	Rank                  int    `json:"rank"`
	ActiveCarID           *uint  `json:"active_car_id,omitempty"`
	MileageReminderPeriod int    `json:"mileage_reminder_period"`
	ReferralsCount        int64  `json:"referrals_count"`
}

// LeaderboardEntry - строка таблицы лидеров по балансу орехов
type LeaderboardEntry struct {
	UserID      uint   `json:"user_id"`
	FirstName   string `json:"first_name"`
	Username    string `json:"username"`
	BalanceNuts int    `json:"balance_nuts"`
}
