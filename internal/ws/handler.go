package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/realtime"
)

// Gateway upgrades authenticated HTTP requests to websocket sessions and
// hands them to the realtime engine.
type Gateway struct {
	directory  realtime.Directory
	registry   *realtime.Registry
	rooms      *realtime.RoomManager
	dispatcher *realtime.Dispatcher
	typing     *realtime.TypingCoordinator
	upgrader   websocket.Upgrader
}

func NewGateway(
	directory realtime.Directory,
	registry *realtime.Registry,
	rooms *realtime.RoomManager,
	dispatcher *realtime.Dispatcher,
	typing *realtime.TypingCoordinator,
	allowedOrigins []string,
) *Gateway {
	return &Gateway{
		directory:  directory,
		registry:   registry,
		rooms:      rooms,
		dispatcher: dispatcher,
		typing:     typing,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS authenticates the token query parameter, upgrades the connection,
// registers it, and joins the user's personal and group rooms.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	userID, err := g.directory.ResolveIdentity(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed for %s: %v", userID, err)
		return
	}

	c := &client{
		ws:      wsConn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		gateway: g,
	}
	c.conn = g.registry.Register(r.Context(), userID, c)

	g.rooms.Join(c.conn.ID, realtime.UserRoom(userID))
	groups, err := g.directory.GroupsOf(r.Context(), userID)
	if err != nil {
		log.Printf("ws: failed to load groups for %s: %v", userID, err)
	}
	for _, groupID := range groups {
		g.rooms.Join(c.conn.ID, realtime.GroupRoom(groupID))
	}

	go c.writePump()
	go c.readPump()
}
