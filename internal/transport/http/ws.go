package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fleet-monitor/tracker/internal/fanout"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser dashboards connect cross-origin; the API key already
	// gates access.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// handleWS upgrades the connection and streams live updates for exactly
// one vehicle or one fleet, chosen by query parameter.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.URL.Query().Get("vehicle")
	fleetID := r.URL.Query().Get("fleet")
	if (vehicleID == "") == (fleetID == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exactly one of vehicle or fleet is required"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	var sub *fanout.Subscription
	if vehicleID != "" {
		sub = s.hub.SubscribeVehicle(vehicleID)
	} else {
		sub = s.hub.SubscribeFleet(fleetID)
	}

	go s.writePump(conn, sub)
	go s.readPump(conn, sub)
}

// writePump forwards hub updates to the peer and keeps the connection
// alive with pings.
func (s *Server) writePump(conn *websocket.Conn, sub *fanout.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case update, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames (subscribers are read-only) and tears
// the subscription down when the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, sub *fanout.Subscription) {
	defer func() {
		s.hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error: %v", err)
			}
			return
		}
	}
}
