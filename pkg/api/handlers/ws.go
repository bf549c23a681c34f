package handlers

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/live"
)

// Origin checks happen in the gateway CORS layer; identity is already
// verified (signed when signing keys are configured) by the time the
// upgrade request reaches this handler.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func registerLive(r *mux.Router) {
	r.HandleFunc("/ws", serveWS).Methods(http.MethodGet)
}

// serveWS upgrades the connection and runs it as the caller's live event
// channel until the socket drops. An optional `events` query param scopes
// delivery to a comma-separated set of event kinds.
func serveWS(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("ws_upgrade_failed", "user", userID, "error", err)
		return
	}

	session := live.NewSession(userID, conn, liveOpts)
	if raw := r.URL.Query().Get("events"); raw != "" {
		kinds := make([]live.Kind, 0, 4)
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, live.Kind(k))
			}
		}
		sub := session.Subscribe(kinds...)
		defer sub.Release()
	}

	reg.Register(userID, session)
	defer reg.Unregister(userID, session)

	go session.WritePump()
	session.ReadLoop(func(kind live.Kind, receiverID string) {
		switch kind {
		case live.KindTyping:
			pipe.NotifyTyping(userID, receiverID)
		case live.KindStopTyping:
			pipe.NotifyStopTyping(userID, receiverID)
		}
	})
}
