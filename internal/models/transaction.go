package models

import (
	"time"
)

// Transaction - неизменяемая запись журнала наград. Баланс пользователя равен
// сумме всех его транзакций; кэшированное поле balance_nuts обновляется в той
// же транзакции БД, что и вставка записи.
type Transaction struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	UserID      uint   `json:"user_id" gorm:"column:user_id;not null;index;uniqueIndex:uniq_one_time_reward,where:one_time"`
	Amount      int    `json:"amount" gorm:"column:amount;not null"`
	Description string `json:"description" gorm:"column:description;not null;type:varchar(255);uniqueIndex:uniq_one_time_reward"`

	// Разовые награды защищены частичным уникальным индексом по
	// (user_id, description): повторная выдача невозможна даже при гонке
	OneTime bool `json:"-" gorm:"column:one_time;not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

type TransactionResponse struct {
	Amount      int       `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
