// Package statushub broadcasts send-pipeline stage transitions to any
// number of connected websocket clients, adapted from the teacher's
// coinjoin-round broadcaster (internal/api's Hub) to a different event
// payload.
package statushub

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/airbitz-style/walletcore/internal/sendpipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local debug dashboard only
	},
}

// stageEvent is the JSON payload pushed to every connected client.
type stageEvent struct {
	WalletID string `json:"walletId"`
	Stage    string `json:"stage"`
}

// Hub maintains the set of active websocket clients and fans out stage
// events to all of them. It implements sendpipeline.StageObserver.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan stageEvent
	mutex     sync.Mutex
}

var _ sendpipeline.StageObserver = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan stageEvent, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Run drains the broadcast channel, writing each event to every connected
// client. It returns when the channel is closed.
func (h *Hub) Run() {
	for ev := range h.broadcast {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("statushub: encode event: %v", err)
			continue
		}
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("statushub: write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an incoming request to a websocket and registers the
// connection as a broadcast recipient.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("statushub: upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// OnStage implements sendpipeline.StageObserver.
func (h *Hub) OnStage(walletID string, stage sendpipeline.Stage) {
	select {
	case h.broadcast <- stageEvent{WalletID: walletID, Stage: stage.String()}:
	default:
		log.Printf("statushub: broadcast channel full, dropping stage event for wallet %s", walletID)
	}
}
