package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hivechat/internal/service"
)

func handleListChats(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chats, err := chatSvc.ListChats(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chats, "User chats fetched successfully")
	}
}

func handleCreateOrGetChat(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chat, err := chatSvc.CreateOrGetDirect(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "receiverID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chat, "Chat retrieved successfully")
	}
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

func handleRenameGroup(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameGroupRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		chat, err := chatSvc.RenameGroup(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "chatID"), req.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chat, "Group chat name updated successfully")
	}
}

func handleDeleteChat(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := chatSvc.DeleteChat(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "chatID")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nil, "Chat deleted successfully")
	}
}

func handleLeaveGroup(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := chatSvc.LeaveGroup(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "chatID")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nil, "Left a group successfully")
	}
}

type groupCreateRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

type groupCreateResponse struct {
	Group any `json:"group"`
	Chat  any `json:"chat"`
}

func handleCreateGroup(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req groupCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		group, chat, err := chatSvc.CreateGroup(r.Context(), CurrentUser(r).ID, service.GroupCreateInput{
			Name:           req.Name,
			ParticipantIDs: req.Participants,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, groupCreateResponse{Group: group, Chat: chat}, "Group created successfully")
	}
}

func handleMyGroups(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := chatSvc.MyGroups(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, groups, "Groups fetched successfully")
	}
}
