package visualization

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Server broadcasts progress events over WebSocket and serves the latest
// per-agent snapshot as JSON.
type Server struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.Mutex

	snapMu   sync.RWMutex
	statuses []string
}

// NewServer creates a new progress server
func NewServer() *Server {
	return &Server{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Start begins serving on the specified port. It blocks; run it in a goroutine.
func (s *Server) Start(port int) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/progress", func(c *gin.Context) {
		s.snapMu.RLock()
		statuses := make([]string, len(s.statuses))
		copy(statuses, s.statuses)
		s.snapMu.RUnlock()
		c.JSON(http.StatusOK, gin.H{"agents": statuses})
	})
	router.GET("/ws", func(c *gin.Context) {
		s.handleWebSocket(c.Writer, c.Request)
	})

	go s.handleBroadcast()

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting progress server on http://localhost%s", addr)
	if err := router.Run(addr); err != nil {
		log.Printf("progress server stopped: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	s.register <- conn

	defer func() {
		s.unregister <- conn
		conn.Close()
	}()

	// Clients only listen; reading keeps the connection's close state fresh.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) handleBroadcast() {
	for {
		select {
		case client := <-s.register:
			s.mutex.Lock()
			s.clients[client] = true
			s.mutex.Unlock()

		case client := <-s.unregister:
			s.mutex.Lock()
			delete(s.clients, client)
			s.mutex.Unlock()

		case event := <-s.broadcast:
			s.mutex.Lock()
			for client := range s.clients {
				if err := client.WriteJSON(event); err != nil {
					log.Printf("Error broadcasting to client: %v", err)
					client.Close()
					delete(s.clients, client)
				}
			}
			s.mutex.Unlock()
		}
	}
}

// BroadcastEvent queues an event for all connected clients. It never
// blocks the caller: if the queue is full the event is dropped, because a
// slow viewer must not stall an agent's status write.
func (s *Server) BroadcastEvent(event Event) {
	select {
	case s.broadcast <- event:
	default:
	}
}

// setSnapshot replaces the snapshot served at /progress
func (s *Server) setSnapshot(statuses []string) {
	s.snapMu.Lock()
	s.statuses = statuses
	s.snapMu.Unlock()
}

// updateSnapshot updates one slot of the snapshot served at /progress
func (s *Server) updateSnapshot(index int, status string) {
	s.snapMu.Lock()
	if index >= 0 && index < len(s.statuses) {
		s.statuses[index] = status
	}
	s.snapMu.Unlock()
}
