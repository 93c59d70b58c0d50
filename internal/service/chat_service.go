package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"hivechat/internal/domain"
	"hivechat/internal/realtime"
)

// Broadcaster delivers a real-time event to every connection of the given
// users.
type Broadcaster interface {
	Emit(userIDs []string, ev realtime.Event, payload any)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Emit([]string, realtime.Event, any) {}

type ChatService struct {
	users        domain.UserRepository
	chats        domain.ChatRepository
	participants domain.ParticipantRepository
	messages     domain.MessageRepository
	groups       domain.GroupRepository
	events       Broadcaster
}

func NewChatService(
	users domain.UserRepository,
	chats domain.ChatRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	groups domain.GroupRepository,
	events Broadcaster,
) *ChatService {
	if events == nil {
		events = nopBroadcaster{}
	}
	return &ChatService{
		users:        users,
		chats:        chats,
		participants: participants,
		messages:     messages,
		groups:       groups,
		events:       events,
	}
}

// ListChats returns the caller's chats, each with its last message attached.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]*domain.Chat, error) {
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range chats {
		last, err := s.messages.Last(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("last message of %s: %w", c.ID, err)
		}
		c.LastMessage = last
	}
	return chats, nil
}

// CreateOrGetDirect returns the direct chat between the caller and
// receiverID, creating it when none exists. A new chat is announced to the
// receiver with newChat.
func (s *ChatService) CreateOrGetDirect(ctx context.Context, callerID, receiverID string) (*domain.Chat, error) {
	if receiverID == "" || receiverID == callerID {
		return nil, fmt.Errorf("create chat: %w", domain.ErrInvalidInput)
	}
	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, fmt.Errorf("user %s: %w", receiverID, domain.ErrNotFound)
	}
	existing, err := s.chats.FindDirect(ctx, callerID, receiverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.LastMessage, err = s.messages.Last(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("last message of %s: %w", existing.ID, err)
		}
		return existing, nil
	}

	chat := &domain.Chat{Name: "One on one chat"}
	if err := s.chats.Create(ctx, chat, []string{callerID, receiverID}); err != nil {
		return nil, err
	}
	s.events.Emit([]string{receiverID}, realtime.EventNewChat, chat)
	return chat, nil
}

type GroupCreateInput struct {
	Name           string
	ParticipantIDs []string
}

// CreateGroup creates a community group together with its group chat. The
// creator becomes the chat's admin.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID string, in GroupCreateInput) (*domain.Group, *domain.Chat, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("create group: %w", domain.ErrInvalidInput)
	}

	ids := make([]string, 0, len(in.ParticipantIDs)+1)
	seen := map[string]struct{}{creatorID: {}}
	ids = append(ids, creatorID)
	for _, id := range in.ParticipantIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if u == nil {
			return nil, nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	group := &domain.Group{ID: uuid.NewString(), Name: name}
	chat := &domain.Chat{Name: name, IsGroupChat: true, GroupID: group.ID, Admin: creatorID}
	if err := s.chats.Create(ctx, chat, ids); err != nil {
		return nil, nil, err
	}
	group.ChatID = chat.ID
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, nil, err
	}
	s.events.Emit(others(ids, creatorID), realtime.EventNewChat, chat)
	return group, chat, nil
}

// RenameGroup changes a group chat's name and tells its members.
func (s *ChatService) RenameGroup(ctx context.Context, callerID, chatID, name string) (*domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("rename group: %w", domain.ErrInvalidInput)
	}
	chat, err := s.memberChat(ctx, chatID, callerID)
	if err != nil {
		return nil, err
	}
	if !chat.IsGroupChat {
		return nil, fmt.Errorf("rename group: %w", domain.ErrInvalidInput)
	}
	if err := s.chats.Rename(ctx, chatID, name); err != nil {
		return nil, err
	}
	chat.Name = name
	s.events.Emit(participantIDs(chat), realtime.EventUpdateGroupName, realtime.GroupName{ChatID: chatID, Name: name})
	return chat, nil
}

// DeleteChat removes a chat for everyone. The other participants receive
// leaveChat.
func (s *ChatService) DeleteChat(ctx context.Context, callerID, chatID string) error {
	chat, err := s.memberChat(ctx, chatID, callerID)
	if err != nil {
		return err
	}
	if chat.IsGroupChat && chat.Admin != callerID {
		return fmt.Errorf("delete chat: %w", domain.ErrForbidden)
	}
	if err := s.chats.Delete(ctx, chatID); err != nil {
		return err
	}
	s.events.Emit(others(participantIDs(chat), callerID), realtime.EventLeaveChat, chat)
	return nil
}

// LeaveGroup removes the caller from a group chat.
func (s *ChatService) LeaveGroup(ctx context.Context, callerID, chatID string) error {
	chat, err := s.memberChat(ctx, chatID, callerID)
	if err != nil {
		return err
	}
	if !chat.IsGroupChat {
		return fmt.Errorf("leave group: %w", domain.ErrInvalidInput)
	}
	return s.participants.Remove(ctx, chatID, callerID)
}

func (s *ChatService) MyGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	return s.groups.ListForUser(ctx, userID)
}

// ParticipantIDs returns the members of chatID after checking that userID is
// one of them.
func (s *ChatService) ParticipantIDs(ctx context.Context, chatID, userID string) ([]string, error) {
	ok, err := s.participants.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrForbidden)
	}
	return s.participants.ParticipantIDs(ctx, chatID)
}

func (s *ChatService) memberChat(ctx context.Context, chatID, userID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	if !chat.HasParticipant(userID) {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrForbidden)
	}
	return chat, nil
}

func participantIDs(c *domain.Chat) []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

func others(ids []string, self string) []string {
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != self {
			res = append(res, id)
		}
	}
	return res
}
