package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"hivechat/internal/config"
	"hivechat/internal/domain"
	"hivechat/internal/security"
	"hivechat/internal/service"
	"hivechat/internal/store/sqlite"
	"hivechat/internal/ws"
)

// NewRouter constructs the sandbox HTTP router and wires routes, services, and middleware.
func NewRouter(cfg *config.Sandbox, db *sql.DB, hub *ws.Hub, tokenSvc *security.TokenService, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Repositories
	userRepo := sqlite.NewUserRepo(db)
	chatRepo := sqlite.NewChatRepo(db)
	partRepo := sqlite.NewParticipantRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	groupRepo := sqlite.NewGroupRepo(db)

	// Services
	userSvc := service.NewUserService(userRepo)
	chatSvc := service.NewChatService(userRepo, chatRepo, partRepo, msgRepo, groupRepo, hub)
	msgSvc := service.NewMessageService(userRepo, chatRepo, partRepo, msgRepo, domain.DefaultPatterns())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "app": cfg.AppName}, "")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(AuthMiddleware(tokenSvc, userRepo))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", handleListUsers(userSvc))
			r.Get("/me", handleMe())
			r.Get("/{userID}/followers", handleFollowers(userSvc))
			r.Post("/{userID}/follow", handleFollow(userSvc))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", handleCreateGroup(chatSvc))
			r.Get("/mine", handleMyGroups(chatSvc))
		})

		r.Route("/chat-app/chats", func(r chi.Router) {
			r.Get("/", handleListChats(chatSvc))
			r.Post("/c/{receiverID}", handleCreateOrGetChat(chatSvc))
			r.Patch("/group/{chatID}", handleRenameGroup(chatSvc))
			r.Delete("/remove/{chatID}", handleDeleteChat(chatSvc))
			r.Delete("/leave/group/{chatID}", handleLeaveGroup(chatSvc))
		})

		r.Route("/chat-app/messages/{chatID}", func(r chi.Router) {
			r.Get("/", handleListMessages(msgSvc))
			r.Post("/", handleSendMessage(msgSvc))
			r.Patch("/{messageID}", handleEditMessage(msgSvc))
			r.Delete("/{messageID}", handleDeleteMessage(msgSvc))
		})
	})

	r.Get("/ws", ws.MakeHandler(hub, tokenSvc, userRepo, chatSvc, cfg.CORSOrigins, log))

	return r
}

// apiResponse is the envelope every API response is wrapped in.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoMessages):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeJSON(w, status, nil, "internal server error")
		return
	}
	writeJSON(w, status, nil, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}
