package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hivechat/internal/domain"
	"hivechat/internal/service"
)

type messageCreateRequest struct {
	Content string             `json:"content"`
	Kind    domain.ContentKind `json:"kind"`
	ReplyTo string             `json:"replyTo"`
}

type messageEditRequest struct {
	Content string `json:"content"`
}

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := msgSvc.List(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "chatID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs, "Messages fetched successfully")
	}
}

func handleSendMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		msg, err := msgSvc.Send(r.Context(), CurrentUser(r).ID, service.MessageCreateInput{
			ChatID:  chi.URLParam(r, "chatID"),
			Content: req.Content,
			Kind:    req.Kind,
			ReplyTo: req.ReplyTo,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg, "Message saved successfully")
	}
}

func handleEditMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageEditRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		msg, err := msgSvc.Edit(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "chatID"), chi.URLParam(r, "messageID"), req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msg, "Message updated successfully")
	}
}

func handleDeleteMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := msgSvc.Delete(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "chatID"), chi.URLParam(r, "messageID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msg, "Message deleted successfully")
	}
}
