package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Описания наград. Разовые награды идентифицируются точным совпадением
// описания, поэтому строки стабильны и не форматируются
const (
	RewardAddCar      = "Добавление авто"
	RewardFillProfile = "Заполнение профиля авто"
	RewardReferee     = "Бонус за регистрацию по приглашению"
)

// RewardService ведёт журнал транзакций и кэшированный баланс орехов
type RewardService struct {
	db *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{db: db}
}

// Grant добавляет транзакцию и в той же транзакции БД меняет кэшированный
// баланс. Нулевая сумма не записывается.
func (s *RewardService) Grant(userID uint, amount int, description string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.GrantTx(tx, userID, amount, description)
	})
}

// GrantTx - то же, что Grant, но внутри уже открытой транзакции вызывающего.
// Нужен, когда начисление должно зафиксироваться атомарно с другими
// изменениями (например, с обновлением пробега).
func (s *RewardService) GrantTx(tx *gorm.DB, userID uint, amount int, description string) error {
	if amount == 0 {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"amount":      amount,
		"description": description,
	}).Info("Начисление транзакции")

	t := models.Transaction{UserID: userID, Amount: amount, Description: description}
	if err := tx.Create(&t).Error; err != nil {
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).
		Update("balance_nuts", gorm.Expr("balance_nuts + ?", amount)).Error
}

// GrantOneTime выдаёт разовую награду не более одного раза на пару
// (пользователь, описание). Гонка двух одновременных выдач закрывается
// частичным уникальным индексом: проигравшая вставка получает unique
// violation и трактуется как "уже выдано". Возвращает true, если награда
// выдана этим вызовом.
func (s *RewardService) GrantOneTime(userID uint, amount int, description string) (bool, error) {
	if amount == 0 {
		return false, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		t := models.Transaction{UserID: userID, Amount: amount, Description: description, OneTime: true}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			Update("balance_nuts", gorm.Expr("balance_nuts + ?", amount)).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			logrus.WithFields(logrus.Fields{"user_id": userID, "description": description}).
				Debug("Разовая награда уже была выдана")
			return false, nil
		}
		return false, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"amount":      amount,
		"description": description,
	}).Info("Выдана разовая награда")
	return true, nil
}

// GrantReferralBonus начисляет пригласившему бонус за конкретного приглашённого
// и самому приглашённому - бонус за регистрацию. Оба начисления разовые.
func (s *RewardService) GrantReferralBonus(referrerID, refereeID uint, referrerAmount, refereeAmount int) error {
	desc := fmt.Sprintf("Приглашение друга (id %d)", refereeID)
	if _, err := s.GrantOneTime(referrerID, referrerAmount, desc); err != nil {
		return err
	}
	_, err := s.GrantOneTime(refereeID, refereeAmount, RewardReferee)
	return err
}

// HasReceived проверяет, получал ли пользователь награду с таким описанием
func (s *RewardService) HasReceived(userID uint, description string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND description = ?", userID, description).
		Limit(1).Count(&count).Error
	return count > 0, err
}

// Balance возвращает кэшированный баланс пользователя
func (s *RewardService) Balance(userID uint) (int, error) {
	var user models.User
	if err := s.db.Select("balance_nuts").First(&user, userID).Error; err != nil {
		return 0, err
	}
	return user.BalanceNuts, nil
}

// Rank возвращает позицию пользователя в рейтинге (с единицы): сортировка по
// балансу по убыванию, при равенстве - по идентификатору по возрастанию
func (s *RewardService) Rank(userID uint) (int, error) {
	var user models.User
	if err := s.db.Select("id, balance_nuts").First(&user, userID).Error; err != nil {
		return 0, err
	}
	var ahead int64
	err := s.db.Model(&models.User{}).
		Where("balance_nuts > ? OR (balance_nuts = ? AND id < ?)", user.BalanceNuts, user.BalanceNuts, user.ID).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// History возвращает страницу транзакций пользователя, новые сверху
func (s *RewardService) History(userID uint, page, pageSize int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	var total int64
	if err := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Transaction
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&list).Error
	return list, total, err
}

// Leaderboard возвращает страницу рейтинга пользователей по балансу
func (s *RewardService) Leaderboard(page, pageSize int) ([]models.LeaderboardEntry, error) {
	if page < 1 {
		page = 1
	}
	var entries []models.LeaderboardEntry
	err := s.db.Model(&models.User{}).
		Select("id as user_id, first_name, username, balance_nuts").
		Order("balance_nuts DESC, id ASC").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Scan(&entries).Error
	return entries, err
}

// isUniqueViolation распознаёт нарушение уникального индекса и у postgres
// (код 23505), и у sqlite, на котором гоняются тесты
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
