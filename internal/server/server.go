package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/nutriscan/backend/internal/database"
	"github.com/nutriscan/backend/internal/models"
	"github.com/nutriscan/backend/internal/off"
	"github.com/nutriscan/backend/internal/scan"
)

// historyLimit is how many recent scans get_history returns.
const historyLimit = 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, this should be more restrictive
	},
}

// Server hosts one scan session per websocket connection. The mobile client
// reports camera authorization and decoded barcodes; the server runs the
// scan lifecycle, looks products up and pushes state snapshots back.
type Server struct {
	db      database.DB
	fetcher scan.ProductFetcher
	clients sync.Map
	debug   bool
}

func New(db database.DB, fetcher scan.ProductFetcher, debug bool) *Server {
	if debug {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Debug logging enabled")
	}
	return &Server{
		db:      db,
		fetcher: fetcher,
		debug:   debug,
	}
}

func (s *Server) Start(port, staticDir string) error {
	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server
	go func() {
		log.Printf("Starting server on port %s\n", port)
		if err := http.ListenAndServe(":"+port, s.Handler(staticDir)); err != nil {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down server...")
	return nil
}

// Handler builds the HTTP routes: the websocket endpoint, the REST lookup,
// a health check and the static client files.
func (s *Server) Handler(staticDir string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{barcode}", s.handleProductLookup).Methods(http.MethodGet)

	// Serve static files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	return r
}

// client is one connected mobile device: its websocket, its scan session
// and its capability gate. Writes are serialized because snapshots are
// pushed from lookup goroutines as well as the read loop.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	session *scan.Session
	gate    *scan.Gate
}

func (c *client) send(messageType string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(map[string]any{
		"type": messageType,
		"data": data,
	})
}

func (c *client) sendError(message string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(map[string]any{
		"type":    "error",
		"message": message,
	}); err != nil {
		log.Println("Error sending error message:", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	c.session = scan.NewSession(s.fetcher, func(snap scan.Snapshot) {
		s.pushState(c, snap)
	})
	c.gate = scan.NewGate(func() {
		// Ask the device to prompt the user; its decision comes back as an
		// authorization message.
		if err := c.send("request_authorization", nil); err != nil {
			log.Println("Error requesting authorization:", err)
		}
	}, c.session.SetAuthorization)

	// Store client connection
	clientID := uuid.New().String()
	s.clients.Store(clientID, c)
	defer s.clients.Delete(clientID)
	defer c.session.Close()

	c.gate.Activate()
	if err := c.send("state", c.session.Snapshot()); err != nil {
		log.Println("Error sending initial state:", err)
		return
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Println("Error reading message:", err)
			break
		}

		// Parse message
		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Println("Error parsing message:", err)
			continue
		}

		s.handleWebSocketMessage(c, msg)
	}
}

func (s *Server) handleWebSocketMessage(c *client, message map[string]any) {
	messageType, ok := message["type"].(string)
	if !ok {
		c.sendError("Invalid message format")
		return
	}

	data, _ := message["data"].(map[string]any)

	switch messageType {
	case "authorization":
		s.handleAuthorization(c, data)
	case "begin_scan":
		c.session.BeginScan()
	case "barcode":
		s.handleBarcode(c, data)
	case "get_history":
		s.handleGetHistory(c)
	default:
		c.sendError("Unknown message type")
	}
}

// handleAuthorization applies a camera-permission report from the device.
func (s *Server) handleAuthorization(c *client, data map[string]any) {
	status, ok := data["status"].(string)
	if !ok {
		c.sendError("Invalid authorization status")
		return
	}
	if s.debug {
		log.Printf("Authorization reported: %s", status)
	}
	c.gate.Update(scan.ParseAuthorization(status))
}

// handleBarcode feeds one decoded code into the session. Duplicate and
// out-of-state detections are dropped by the session itself.
func (s *Server) handleBarcode(c *client, data map[string]any) {
	code, ok := data["code"].(string)
	if !ok {
		c.sendError("Invalid barcode data")
		return
	}
	c.session.ObserveBarcode(code)
}

func (s *Server) handleGetHistory(c *client) {
	records, err := s.db.RecentScans(context.Background(), historyLimit)
	if err != nil {
		log.Printf("Error retrieving history: %v", err)
		c.sendError("Failed to retrieve history")
		return
	}

	if err := c.send("history", map[string]any{"items": records}); err != nil {
		log.Println("Error sending history:", err)
	}
}

// pushState forwards every session transition to the device and persists
// completed cycles. Result and error are each reached at most once per
// cycle, so this writes one history row per completed scan.
func (s *Server) pushState(c *client, snap scan.Snapshot) {
	if err := c.send("state", snap); err != nil {
		log.Println("Error sending state:", err)
	}

	rec := recordFromSnapshot(snap)
	if rec == nil {
		return
	}
	if err := s.db.SaveScan(context.Background(), rec); err != nil {
		log.Printf("Error saving scan record: %v", err)
	}
}

// recordFromSnapshot builds the history row for a terminal snapshot, or nil
// for non-terminal states.
func recordFromSnapshot(snap scan.Snapshot) *models.ScanRecord {
	switch snap.State {
	case scan.StateResult:
		rec := &models.ScanRecord{
			ID:          uuid.New().String(),
			Barcode:     snap.ScannedBarcode,
			Status:      "found",
			ProductName: snap.Product.Name,
			Brand:       snap.Product.Brand,
			CreatedAt:   time.Now(),
		}
		if snap.Product.NutriScore != nil {
			rec.NutriScoreGrade = snap.Product.NutriScore.DisplayGrade()
		}
		return rec
	case scan.StateError:
		return &models.ScanRecord{
			ID:        uuid.New().String(),
			Barcode:   snap.ScannedBarcode,
			Status:    "error",
			Error:     snap.ErrorMessage,
			CreatedAt: time.Now(),
		}
	default:
		return nil
	}
}

// handleProductLookup is a direct REST lookup that bypasses the scan
// session, for clients that already hold a barcode.
func (s *Server) handleProductLookup(w http.ResponseWriter, r *http.Request) {
	barcode := mux.Vars(r)["barcode"]

	product, err := s.fetcher.FetchProduct(r.Context(), barcode)
	if err != nil {
		writeJSON(w, lookupStatusCode(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// lookupStatusCode maps client-error classifications onto HTTP statuses.
func lookupStatusCode(err error) int {
	switch {
	case errors.Is(err, off.ErrInvalidBarcode):
		return http.StatusBadRequest
	case errors.Is(err, off.ErrProductNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println("Error writing response:", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
