package websocket

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestClient(t *testing.T, userID uint) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("user_id", userID)
		Handler()(c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// регистрация идёт через канал менеджера, дожидаемся её
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		manager.mutex.RLock()
		n := len(manager.clientsByUser[userID])
		manager.mutex.RUnlock()
		if n > 0 {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("клиент не зарегистрировался в менеджере")
	return nil
}

func TestSendToUserConcurrentWriters(t *testing.T) {
	StartManager()
	conn := dialTestClient(t, 42)

	// оба фоновых цикла и обработчики запросов могут писать одному
	// пользователю одновременно; все кадры должны дойти целыми
	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SendToUser(42, &Message{Type: "REWARD_GRANTED", Payload: gin.H{"amount": 10}})
		}()
	}

	received := 0
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for received < writers {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "REWARD_GRANTED", msg.Type)
		received++
	}
	wg.Wait()
	assert.Equal(t, writers, received)
}

func TestSendToUserWithoutConnections(t *testing.T) {
	// пользователь без подключений: тихий no-op, основной канал - шлюз
	SendToUser(99999, &Message{Type: "MILEAGE_DUE"})
}
