package handlers

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/gorilla/mux"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/errs"
	"chatrelay/pkg/utils"
	"chatrelay/pkg/validation"
)

func registerMessages(r *mux.Router) {
	r.HandleFunc("/messages/{peer}", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/seen", markSeen).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/reactions", reactMessage).Methods(http.MethodPost)
}

func sendMessage(w http.ResponseWriter, r *http.Request) {
	sender := auth.UserIDFromContext(r.Context())
	peer, err := auth.CanonicalID(mux.Vars(r)["peer"])
	if err != nil {
		utils.JSONError(w, errs.HTTPStatus(err), err.Error())
		return
	}

	var payload validation.SendPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	msg, err := pipe.Send(r.Context(), sender, peer, payload)
	if err != nil {
		utils.JSONError(w, errs.HTTPStatus(err), err.Error())
		return
	}
	slog.Info("message_sent", "id", msg.ID, "sender", sender, "receiver", peer)
	_ = utils.JSONWrite(w, http.StatusCreated, msg)
}

func markSeen(w http.ResponseWriter, r *http.Request) {
	requester := auth.UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	msg, err := pipe.MarkSeen(id, requester)
	if err != nil {
		utils.JSONError(w, errs.HTTPStatus(err), err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, msg)
}

func deleteMessage(w http.ResponseWriter, r *http.Request) {
	requester := auth.UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	msg, err := pipe.Delete(id, requester)
	if err != nil {
		utils.JSONError(w, errs.HTTPStatus(err), err.Error())
		return
	}
	slog.Info("message_deleted", "id", id, "sender", requester)
	_ = utils.JSONWrite(w, http.StatusOK, msg)
}

func reactMessage(w http.ResponseWriter, r *http.Request) {
	requester := auth.UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	msg, err := pipe.React(id, requester, body.Emoji)
	if err != nil {
		utils.JSONError(w, errs.HTTPStatus(err), err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, msg)
}
