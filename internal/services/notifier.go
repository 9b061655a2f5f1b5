package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	ws "github.com/UtkusMalen/CarTrackerBot/internal/websocket"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Типы исходящих уведомлений
const (
	NotificationMileageDue      = "MILEAGE_DUE"
	NotificationTrackingDue     = "TRACKING_DUE"
	NotificationTrackingRenewed = "TRACKING_RENEWED"
	NotificationRewardGranted   = "REWARD_GRANTED"
)

// Notifier - внешний доставщик уведомлений. Ядро шлёт запросы по принципу
// "отправил и забыл": ошибка доставки логируется и не повторяется в рамках
// того же прохода.
type Notifier interface {
	NotifyMileageDue(ctx context.Context, userID uint, carName string, carID uint) error
	NotifyTimeTrackingDue(ctx context.Context, userID uint, carName, trackingName string, daysLeft int, trackingID uint) error
	NotifyTrackingRenewed(ctx context.Context, userID uint, carName, trackingName string) error
	NotifyRewardGranted(ctx context.Context, userID uint, amount int, description string) error
}

// GatewayNotifier отправляет уведомления во внешний шлюз бота по HTTP и
// дублирует их подключённым WebSocket-клиентам. Последняя отправка на
// владельца кладётся в redis: это замена глобальной карте "последнее
// сообщение по чату", кэш принадлежит доставщику, а не ядру.
type GatewayNotifier struct {
	gatewayURL string
	gatewayKey string
	client     *http.Client
	rdb        *redis.Client
}

type gatewayPayload struct {
	Type         string `json:"type"`
	UserID       uint   `json:"user_id"`
	CarID        uint   `json:"car_id,omitempty"`
	CarName      string `json:"car_name,omitempty"`
	TrackingID   uint   `json:"tracking_id,omitempty"`
	TrackingName string `json:"tracking_name,omitempty"`
	DaysLeft     int    `json:"days_left,omitempty"`
	Amount       int    `json:"amount,omitempty"`
	Description  string `json:"description,omitempty"`
}

// NewGatewayNotifier создаёт доставщика; rdb может быть nil, тогда кэш
// последних уведомлений не ведётся
func NewGatewayNotifier(rdb *redis.Client) *GatewayNotifier {
	return &GatewayNotifier{
		gatewayURL: os.Getenv("BOT_GATEWAY_URL"),
		gatewayKey: os.Getenv("BOT_GATEWAY_KEY"),
		// отдельный таймаут на каждую доставку, чтобы один недоступный
		// получатель не останавливал проход планировщика
		client: &http.Client{Timeout: 10 * time.Second},
		rdb:    rdb,
	}
}

func (n *GatewayNotifier) NotifyMileageDue(ctx context.Context, userID uint, carName string, carID uint) error {
	return n.send(ctx, gatewayPayload{
		Type:    NotificationMileageDue,
		UserID:  userID,
		CarID:   carID,
		CarName: carName,
	})
}

func (n *GatewayNotifier) NotifyTimeTrackingDue(ctx context.Context, userID uint, carName, trackingName string, daysLeft int, trackingID uint) error {
	return n.send(ctx, gatewayPayload{
		Type:         NotificationTrackingDue,
		UserID:       userID,
		CarName:      carName,
		TrackingID:   trackingID,
		TrackingName: trackingName,
		DaysLeft:     daysLeft,
	})
}

func (n *GatewayNotifier) NotifyTrackingRenewed(ctx context.Context, userID uint, carName, trackingName string) error {
	return n.send(ctx, gatewayPayload{
		Type:         NotificationTrackingRenewed,
		UserID:       userID,
		CarName:      carName,
		TrackingName: trackingName,
	})
}

func (n *GatewayNotifier) NotifyRewardGranted(ctx context.Context, userID uint, amount int, description string) error {
	return n.send(ctx, gatewayPayload{
		Type:        NotificationRewardGranted,
		UserID:      userID,
		Amount:      amount,
		Description: description,
	})
}

func (n *GatewayNotifier) send(ctx context.Context, payload gatewayPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}

	// подключённые клиенты получают уведомление сразу по WebSocket
	ws.SendToUser(payload.UserID, &ws.Message{Type: payload.Type, Payload: payload})

	if n.gatewayURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.gatewayURL, bytes.NewBuffer(body))
		if err != nil {
			return fmt.Errorf("ошибка создания запроса к шлюзу: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "key="+n.gatewayKey)

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("ошибка отправки уведомления: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("шлюз вернул ошибку: %s", resp.Status)
		}
	}

	if n.rdb != nil {
		key := fmt.Sprintf("notify:last:%d", payload.UserID)
		if err := n.rdb.Set(ctx, key, body, 7*24*time.Hour).Err(); err != nil {
			logrus.WithError(err).Warn("Не удалось записать последнее уведомление в redis")
		}
	}
	return nil
}
