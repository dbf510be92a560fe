package api

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/telesync/internal/auth"
	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/codec"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// watchBuffer is the per-stream event buffer. Slow watchers miss events
// and are expected to re-read the projections.
const watchBuffer = 256

// Service implements SessionServer over an open session.
type Service struct {
	session   *session.Session
	bus       *bus.Bus
	startedAt time.Time
	logger    *zap.Logger
}

var _ SessionServer = (*Service)(nil)

// NewService creates the API service for s. b must be the bus s publishes
// on.
func NewService(s *session.Session, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{session: s, bus: b, startedAt: time.Now(), logger: logger}
}

func (s *Service) GetStatus(_ context.Context, _ *GetStatusRequest) (*GetStatusResponse, error) {
	return &GetStatusResponse{
		Session:         s.session.Name(),
		Authorization:   string(s.session.Authorization()),
		Connection:      string(s.session.Connection()),
		ConnectionTitle: s.session.ConnectionTitle(),
		OpenChatID:      s.session.OpenChatID(),
		ChatCount:       int32(len(s.session.Chats().Load())),
		UptimeMs:        time.Since(s.startedAt).Milliseconds(),
	}, nil
}

func (s *Service) ListChats(_ context.Context, req *ListChatsRequest) (*ListChatsResponse, error) {
	chats := s.session.Chats().Load()
	total := len(chats)
	offset := min(max(int(req.Offset), 0), total)
	end := total
	if req.Limit > 0 {
		end = min(offset+int(req.Limit), total)
	}
	return &ListChatsResponse{Chats: chats[offset:end], Total: int32(total)}, nil
}

func (s *Service) OpenChat(ctx context.Context, req *OpenChatRequest) (*Empty, error) {
	if req.ChatID == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat_id is required")
	}
	if err := s.session.OpenChat(ctx, req.ChatID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Service) CloseChat(_ context.Context, _ *Empty) (*Empty, error) {
	s.session.CloseChat()
	return &Empty{}, nil
}

func (s *Service) ListMessages(_ context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	chatID := s.session.OpenChatID()
	if chatID == 0 {
		return nil, toStatus(session.ErrNoOpenChat)
	}
	msgs := s.session.Conversation().Load()
	if req.Limit > 0 && int(req.Limit) < len(msgs) {
		msgs = msgs[:req.Limit]
	}
	return &ListMessagesResponse{
		ChatID:     chatID,
		Messages:   FromMessages(msgs, s.session.Labels()),
		ReadInbox:  s.session.ReadInbox().Load(),
		ReadOutbox: s.session.ReadOutbox().Load(),
	}, nil
}

func (s *Service) LoadMore(ctx context.Context, _ *Empty) (*LoadMoreResponse, error) {
	n, err := s.session.LoadMore(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoadMoreResponse{Loaded: int32(n)}, nil
}

func (s *Service) SendText(ctx context.Context, req *SendTextRequest) (*SendTextResponse, error) {
	if req.Text == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "text is required")
	}
	chatID := req.ChatID
	if chatID == 0 {
		chatID = s.session.OpenChatID()
	}
	if chatID == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat_id is required when no chat is open")
	}
	msg, err := s.session.SendMessage(ctx, chatID, req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SendTextResponse{Message: FromMessage(msg, s.session.Labels())}, nil
}

func (s *Service) MarkRead(ctx context.Context, req *MarkReadRequest) (*Empty, error) {
	ids := req.MessageIDs
	if len(ids) == 0 {
		for _, m := range s.session.Conversation().Load() {
			if !m.IsOutgoing {
				ids = append(ids, m.ID)
			}
		}
	}
	if err := s.session.MarkRead(ctx, ids...); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Service) DeleteMessage(ctx context.Context, req *DeleteMessageRequest) (*Empty, error) {
	if err := s.session.DeleteMessage(ctx, req.MessageID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Service) SearchPublicChats(ctx context.Context, req *SearchRequest) (*ListChatsResponse, error) {
	found, err := s.session.SearchPublicChats(ctx, req.Query)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListChatsResponse{Chats: found, Total: int32(len(found))}, nil
}

func (s *Service) JoinChat(ctx context.Context, req *JoinChatRequest) (*Empty, error) {
	if err := s.session.JoinChat(ctx, req.ChatID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Service) ListContacts(ctx context.Context, req *ListContactsRequest) (*ListContactsResponse, error) {
	contacts := s.session.Contacts().Load()
	if req.Refresh || contacts == nil {
		var err error
		if contacts, err = s.session.RefreshContacts(ctx); err != nil {
			return nil, toStatus(err)
		}
	}
	return &ListContactsResponse{Contacts: contacts}, nil
}

func (s *Service) LoadChats(ctx context.Context, req *LoadChatsRequest) (*LoadChatsResponse, error) {
	done, err := s.session.LoadChats(ctx, int(req.Limit))
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoadChatsResponse{Done: done}, nil
}

func (s *Service) GetMe(ctx context.Context, _ *Empty) (*User, error) {
	me, err := s.session.Me(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &User{
		ID:       me.ID,
		Name:     s.session.UserName(ctx, me.ID),
		Username: me.Username,
		IsBot:    me.Type == td.UserTypeBot,
	}, nil
}

func (s *Service) Download(ctx context.Context, req *DownloadRequest) (*DownloadResponse, error) {
	msg, err := s.session.Message(ctx, req.ChatID, req.MessageID)
	if err != nil {
		return nil, toStatus(err)
	}
	file := td.ContentFile(msg.Content)
	if file == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "message has no file")
	}

	type result struct {
		ok   bool
		path string
	}
	done := make(chan result, 1)
	s.session.DownloadFile(file, nil, func(ok bool, path string) { done <- result{ok, path} })

	select {
	case r := <-done:
		if !r.ok {
			return nil, grpcstatus.Error(codes.Unavailable, "download failed")
		}
		resp := &DownloadResponse{Path: r.path}
		if fi, err := os.Stat(r.path); err == nil {
			resp.Size = fi.Size()
		}
		return resp, nil
	case <-ctx.Done():
		return nil, toStatus(ctx.Err())
	}
}

func (s *Service) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.session.LogOut(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// Watch streams bus events until the client goes away.
func (s *Service) Watch(req *WatchRequest, stream EventStream) error {
	ch, unsub := s.bus.Subscribe(req.Prefix, watchBuffer)
	defer unsub()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(s.envelope(evt)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *Service) envelope(evt bus.Event) *Event {
	out := &Event{
		ID:               uuid.NewString(),
		Session:          s.session.Name(),
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	payload := evt.Payload
	if msgs, ok := payload.([]*td.Message); ok {
		payload = FromMessages(msgs, s.session.Labels())
	}
	data, err := codec.Marshal(payload)
	if err != nil {
		s.logger.Warn("event payload not encodable", zap.String("kind", evt.Kind), zap.Error(err))
		return out
	}
	out.Payload = data
	return out
}

// toStatus maps session and backend errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, session.ErrNoOpenChat):
		return grpcstatus.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, bridge.ErrRetryExhausted):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	case bridge.IsFatal(err):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case bridge.IsBackendCode(err, 400):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case bridge.IsBackendCode(err, 401), errors.Is(err, auth.ErrRejected):
		return grpcstatus.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}
