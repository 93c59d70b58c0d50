package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hivechat/internal/service"
)

func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CurrentUser(r), "Current user fetched successfully")
	}
}

func handleListUsers(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := userSvc.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users, "Users fetched successfully")
	}
}

func handleFollowers(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := userSvc.Followers(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users, "Followers fetched successfully")
	}
}

func handleFollow(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := userSvc.Follow(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "userID")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nil, "Followed successfully")
	}
}
