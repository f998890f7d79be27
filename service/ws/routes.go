package ws

import (
	"net/http"

	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin is not required; the bearer token authenticates the socket.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Hub) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")
}

// HandleWebSocket upgrades the request and subscribes the caller to their
// own appointment events.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	actor, err := utils.GetActorFromRequest(r)
	if err != nil {
		utils.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		owner: owner{actor.Role, actor.ID},
	}
	h.register(client)
	h.log.Debug().Str("role", string(actor.Role)).Uint("owner_id", actor.ID).Msg("websocket connected")

	go client.writePump()
	go client.readPump()
}
