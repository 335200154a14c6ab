package ws

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// client is one WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.RWMutex
	exchanges map[string]bool // nil means every exchange
}

// filterMsg is the only message clients send:
//
//	{"exchanges":["okx","binance"]}   narrow the stream
//	{"exchanges":[]}                  receive everything again
type filterMsg struct {
	Exchanges []string `json:"exchanges"`
}

func (c *client) setFilter(exchanges []string) {
	set := domain.NormalizeExchangeSet(exchanges)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(set) == 0 {
		c.exchanges = nil
		return
	}
	c.exchanges = make(map[string]bool, len(set))
	for _, e := range set {
		c.exchanges[e] = true
	}
}

// wants reports whether evt passes the client's filter. Deletions carry no
// record and are always delivered.
func (c *client) wants(evt domain.SpreadEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.exchanges == nil || evt.Spread == nil {
		return true
	}
	return c.exchanges[domain.NormalizeExchangeID(evt.Spread.Exchange)]
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var f filterMsg
		if json.Unmarshal(message, &f) == nil {
			c.setFilter(f.Exchanges)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func splitCSV(s string) []string {
	return strings.Split(s, ",")
}
