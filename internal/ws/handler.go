package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hivechat/internal/domain"
	"hivechat/internal/realtime"
	"hivechat/internal/security"
)

// Members resolves who takes part in a chat. It fails when userID is not a
// member itself.
type Members interface {
	ParticipantIDs(ctx context.Context, chatID, userID string) ([]string, error)
}

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin admits non-browser clients, which send no Origin, and
// browsers from an allowed origin.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// chatScoped is the part of a message payload naming its chat.
type chatScoped struct {
	ChatID string `json:"chat"`
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or Sec-WebSocket-Protocol), then relays events:
//   - messageReceived / messageEdited / messageDeleted -> other chat members, payload unchanged
//   - typing / stopTyping                              -> other chat members, tagged with the sender
//   - messageRead                                      -> other chat members as a read receipt
//   - joinChat                                         -> membership check only
//   - checkUserStatus                                  -> userOnline or userOffline back to the caller
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	users domain.UserRepository,
	members Members,
	allowedOrigins []string,
	log zerolog.Logger,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sub, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByID(ctx, sub)
		if err != nil || user == nil {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		l := log.With().Str("user", user.ID).Logger()
		c := &client{conn: conn}
		presence := realtime.Presence{UserID: user.ID}

		if first := hub.Register(user.ID, c); first {
			broadcast(hub, realtime.EventUserOnline, presence, l)
		}
		defer func() {
			if last := hub.Unregister(user.ID, c); last {
				broadcast(hub, realtime.EventUserOffline, presence, l)
			}
			l.Debug().Msg("ws: disconnected")
		}()
		if err := sendEvent(c, realtime.EventConnected, presence); err != nil {
			return
		}
		l.Debug().Msg("ws: connected")

		rl := &relay{hub: hub, members: members, user: user, client: c, log: l}
		for {
			var f realtime.Frame
			if err := conn.ReadJSON(&f); err != nil {
				break
			}
			rl.handle(ctx, f)
		}
	}
}

type relay struct {
	hub     *Hub
	members Members
	user    *domain.User
	client  *client
	log     zerolog.Logger
}

func (rl *relay) handle(ctx context.Context, f realtime.Frame) {
	switch f.Event {
	case realtime.EventMessageReceived, realtime.EventMessageEdited, realtime.EventMessageDeleted:
		var ref chatScoped
		if err := json.Unmarshal(f.Data, &ref); err != nil || ref.ChatID == "" {
			rl.sendError(fmt.Sprintf("%s requires a message with its chat", f.Event))
			return
		}
		if to, ok := rl.others(ctx, ref.ChatID); ok {
			rl.hub.BroadcastToUsers(to, f)
		}

	case realtime.EventTyping, realtime.EventStopTyping:
		var t realtime.Typing
		if err := json.Unmarshal(f.Data, &t); err != nil || t.ChatID == "" {
			rl.sendError(fmt.Sprintf("%s requires chatId", f.Event))
			return
		}
		t.UserID = rl.user.ID
		if to, ok := rl.others(ctx, t.ChatID); ok {
			rl.hub.Emit(to, f.Event, t)
		}

	case realtime.EventMessageRead:
		var ref realtime.ChatRef
		if err := json.Unmarshal(f.Data, &ref); err != nil || ref.ChatID == "" {
			rl.sendError("messageRead requires chatId")
			return
		}
		if to, ok := rl.others(ctx, ref.ChatID); ok {
			rl.hub.Emit(to, realtime.EventMessageRead, realtime.Read{ChatID: ref.ChatID, UserID: rl.user.ID})
		}

	case realtime.EventJoinChat:
		var ref realtime.ChatRef
		if err := json.Unmarshal(f.Data, &ref); err != nil || ref.ChatID == "" {
			rl.sendError("joinChat requires chatId")
			return
		}
		if _, ok := rl.others(ctx, ref.ChatID); ok {
			rl.log.Debug().Str("chat", ref.ChatID).Msg("ws: joined chat")
		}

	case realtime.EventCheckUserStatus:
		var p realtime.Presence
		if err := json.Unmarshal(f.Data, &p); err != nil || p.UserID == "" {
			rl.sendError("checkUserStatus requires userId")
			return
		}
		ev := realtime.EventUserOffline
		if rl.hub.IsOnline(p.UserID) {
			ev = realtime.EventUserOnline
		}
		if err := sendEvent(rl.client, ev, p); err != nil {
			rl.log.Debug().Err(err).Msg("ws: reply status")
		}

	default:
		rl.log.Warn().Str("event", string(f.Event)).Msg("ws: unknown event")
		rl.sendError(fmt.Sprintf("unknown event %q", f.Event))
	}
}

// others returns the chat's members except the caller. It reports false, and
// tells the caller, when the caller is not a member.
func (rl *relay) others(ctx context.Context, chatID string) ([]string, bool) {
	ids, err := rl.members.ParticipantIDs(ctx, chatID, rl.user.ID)
	if err != nil {
		rl.log.Debug().Err(err).Str("chat", chatID).Msg("ws: participants")
		rl.sendError("not allowed for this chat")
		return nil, false
	}
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != rl.user.ID {
			res = append(res, id)
		}
	}
	return res, true
}

func (rl *relay) sendError(msg string) {
	if err := sendEvent(rl.client, realtime.EventSocketError, realtime.SocketError{Message: msg}); err != nil {
		rl.log.Debug().Err(err).Msg("ws: send error")
	}
}

func sendEvent(c *client, ev realtime.Event, payload any) error {
	f, err := realtime.NewFrame(ev, payload)
	if err != nil {
		return err
	}
	return c.send(f)
}

func broadcast(hub *Hub, ev realtime.Event, payload any, log zerolog.Logger) {
	f, err := realtime.NewFrame(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(ev)).Msg("ws: encode")
		return
	}
	hub.BroadcastAll(f)
}
