package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"campustransit/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests to WebSocket connections and
// pumps inbound events through the hub until the client disconnects.
func (h *Hub) Handler(jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := wsToken(r)
		if token == "" {
			http.Error(w, "missing_token", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ParseToken(jwtSecret, token)
		if err != nil {
			http.Error(w, "invalid_token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}

		log.Printf("realtime client connected: %s (%s)", claims.UserID, claims.UserType)
		c := h.addClient(conn)

		// The request context dies when this handler returns; the read
		// loop outlives it on the hijacked connection.
		ctx := context.Background()

		go func() {
			defer func() {
				h.removeClient(c)
				log.Printf("realtime client disconnected: %s", claims.UserID)
			}()
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var env Envelope
				if err := json.Unmarshal(data, &env); err != nil {
					continue
				}
				h.route(ctx, claims.UserID, env)
			}
		}()
	}
}

// wsToken reads the credential from the Authorization header or, for
// browser clients that cannot set headers on WebSocket requests, from the
// token query parameter.
func wsToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}
