package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message - формат сообщения WebSocket
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Manager управляет всеми подключениями WebSocket, ключ - пользователь
type Manager struct {
	clientsByUser map[uint]map[*client]bool
	register      chan *client
	unregister    chan *client
	mutex         sync.RWMutex
}

type client struct {
	conn     *websocket.Conn
	userID   uint
	clientID string

	// у gorilla/websocket не больше одного писателя на соединение;
	// оба фоновых цикла и обработчики запросов пишут конкурентно
	writeMu sync.Mutex
}

// send сериализует записи в соединение
func (c *client) send(msg *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(msg)
}

// Глобальный менеджер WebSocket
var manager = newManager()

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Разрешаем подключения с любых источников
	},
}

func newManager() *Manager {
	return &Manager{
		clientsByUser: make(map[uint]map[*client]bool),
		register:      make(chan *client),
		unregister:    make(chan *client),
	}
}

// StartManager запускает обработку регистраций подключений
func StartManager() {
	logrus.Info("Запуск WebSocket Manager")
	go func() {
		for {
			select {
			case c := <-manager.register:
				manager.mutex.Lock()
				if manager.clientsByUser[c.userID] == nil {
					manager.clientsByUser[c.userID] = make(map[*client]bool)
				}
				manager.clientsByUser[c.userID][c] = true
				manager.mutex.Unlock()
				logrus.WithFields(logrus.Fields{"client_id": c.clientID, "user_id": c.userID}).
					Debug("Зарегистрирован новый WebSocket клиент")
			case c := <-manager.unregister:
				manager.mutex.Lock()
				if clients, ok := manager.clientsByUser[c.userID]; ok {
					if clients[c] {
						delete(clients, c)
						c.conn.Close()
					}
					if len(clients) == 0 {
						delete(manager.clientsByUser, c.userID)
					}
				}
				manager.mutex.Unlock()
				logrus.WithFields(logrus.Fields{"client_id": c.clientID, "user_id": c.userID}).
					Debug("WebSocket клиент отключён")
			}
		}
	}()
}

// SendToUser доставляет сообщение всем активным подключениям пользователя.
// Отсутствие подключений не считается ошибкой: основной канал доставки - шлюз.
func SendToUser(userID uint, msg *Message) {
	manager.mutex.RLock()
	clients := make([]*client, 0, len(manager.clientsByUser[userID]))
	for c := range manager.clientsByUser[userID] {
		clients = append(clients, c)
	}
	manager.mutex.RUnlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			logrus.WithError(err).WithField("user_id", userID).
				Warn("Не удалось отправить сообщение по WebSocket")
		}
	}
}

// Handler обновляет HTTP-соединение до WebSocket; пользователь берётся из
// JWT, проверенного в middleware
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithError(err).Error("Ошибка обновления соединения до WebSocket")
			return
		}

		cl := &client{
			conn:     conn,
			userID:   userID,
			clientID: uuid.New().String(),
		}
		manager.register <- cl

		// Читаем входящие кадры только ради контроля разрыва соединения
		go func() {
			defer func() {
				manager.unregister <- cl
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
