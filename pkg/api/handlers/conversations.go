package handlers

import (
	"net/http"

	"log/slog"

	"github.com/gorilla/mux"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/errs"
	"chatrelay/pkg/utils"
)

func registerConversations(r *mux.Router) {
	r.HandleFunc("/conversations/{peer}", openConversation).Methods(http.MethodGet)
	r.HandleFunc("/peers", listPeers).Methods(http.MethodGet)
}

// openConversation returns the full history with a peer in send order and,
// as a side effect, marks everything the peer sent as seen.
func openConversation(w http.ResponseWriter, r *http.Request) {
	reader := auth.UserIDFromContext(r.Context())
	peer, err := auth.CanonicalID(mux.Vars(r)["peer"])
	if err != nil {
		utils.JSONError(w, errs.HTTPStatus(err), err.Error())
		return
	}
	if peer == reader {
		utils.JSONError(w, http.StatusBadRequest, "cannot open a conversation with yourself")
		return
	}
	msgs, err := pipe.OpenConversation(reader, peer)
	if err != nil {
		utils.JSONError(w, errs.HTTPStatus(err), err.Error())
		return
	}
	slog.Info("conversation_opened", "reader", reader, "peer", peer, "count", len(msgs))
	_ = utils.JSONWrite(w, http.StatusOK, msgs)
}

// listPeers returns the reader's sidebar summaries.
func listPeers(w http.ResponseWriter, r *http.Request) {
	reader := auth.UserIDFromContext(r.Context())
	peers, err := pipe.Peers(reader)
	if err != nil {
		utils.JSONError(w, errs.HTTPStatus(err), err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, peers)
}
