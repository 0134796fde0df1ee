package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"capstone/llm"
	"capstone/lock"
	"capstone/model"
	"capstone/store"

	"github.com/google/uuid"
)

const (
	errorNotice     = "\n\nError processing your message."
	persistTimeout  = 10 * time.Second
	noAPIKeyMessage = `No API Key provided. Please click the "API Key" button to add one.`
	badKeyMessage   = "Your API key is invalid or lacks permission."
)

// ErrClientGone is returned by Relay when the caller went away mid-stream.
// Nothing is persisted in that case.
var ErrClientGone = errors.New("client disconnected")

// Upload is a file received with a chat message.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type TurnInput struct {
	RequestID      string
	UserID         string
	ConversationID string
	Message        string
	APIKey         string
	File           *Upload
}

// StreamWriter is the response body of a streaming reply.
type StreamWriter interface {
	io.Writer
	Flush()
}

type ChatService struct {
	store           store.Store
	gateway         llm.Gateway
	locker          lock.Locker
	defaultAPIKey   string
	personalityFile string
}

func NewChatService(s store.Store, gateway llm.Gateway, locker lock.Locker, defaultAPIKey, personalityFile string) *ChatService {
	return &ChatService{
		store:           s,
		gateway:         gateway,
		locker:          locker,
		defaultAPIKey:   defaultAPIKey,
		personalityFile: personalityFile,
	}
}

// Turn is a chat turn whose model reply has started. It must be finished
// with Relay.
type Turn struct {
	svc       *ChatService
	requestID string
	conv      *model.Conversation
	created   bool
	input     string
	file      *model.File
	startedAt time.Time

	first   *llm.Chunk
	chunks  <-chan llm.Chunk
	cancel  context.CancelFunc
	release func()
}

func (t *Turn) ConversationID() string {
	return t.conv.ID
}

// Created reports whether the conversation was created by this turn.
func (t *Turn) Created() bool {
	return t.created
}

// StartTurn validates the input, resolves the conversation and starts the
// model reply. It returns once the gateway has produced its first event, so
// every failure up to that point is reported here rather than in the stream.
func (s *ChatService) StartTurn(ctx context.Context, in TurnInput) (*Turn, error) {
	if in.UserID == "" {
		return nil, newError(Unauthorized, "Unauthorized", nil)
	}
	apiKey := in.APIKey
	if apiKey == "" {
		apiKey = s.defaultAPIKey
	}
	if apiKey == "" {
		return nil, newError(BadRequest, noAPIKeyMessage, nil)
	}
	if in.Message == "" && in.File == nil {
		return nil, newError(BadRequest, "Missing message or file.", nil)
	}

	startedAt := time.Now()
	conv, created, err := s.resolveConversation(ctx, in, startedAt)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.TryLock(ctx, conv.ID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, newError(Conflict, "A reply is already being generated for this conversation.", err)
		}
		return nil, newError(Internal, "An internal server error occurred.", err)
	}

	turn, err := s.start(ctx, in, apiKey, conv, created, startedAt)
	if err != nil {
		release()
		return nil, err
	}
	turn.release = release
	return turn, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, in TurnInput, now time.Time) (*model.Conversation, bool, error) {
	if in.ConversationID != "" {
		conv, err := s.store.GetConversation(ctx, in.UserID, in.ConversationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, false, newError(NotFound, "Conversation not found", err)
			}
			return nil, false, newError(Internal, "An internal server error occurred.", err)
		}
		return conv, false, nil
	}

	conv := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Title:     model.TitleFor(in.Message),
		CreatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, false, newError(Internal, "An internal server error occurred.", err)
	}
	return conv, true, nil
}

func (s *ChatService) start(ctx context.Context, in TurnInput, apiKey string, conv *model.Conversation, created bool, startedAt time.Time) (*Turn, error) {
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, newError(Internal, "An internal server error occurred.", err)
	}
	history := make([]llm.Turn, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, llm.Turn{Role: m.Role, Text: m.Content})
	}

	instruction, err := llm.LoadSystemInstruction(s.personalityFile)
	if err != nil {
		logger.Debugf("[%s] using default system instruction: %s", in.RequestID, err)
	}

	prompt := llm.Turn{Role: model.RoleUser, Text: in.Message}
	var file *model.File
	if in.File != nil {
		att, err := llm.NormalizeAttachment(&llm.Attachment{
			Filename: in.File.Filename,
			MIMEType: in.File.ContentType,
			Data:     in.File.Data,
		})
		if err != nil {
			return nil, newError(Internal, "An internal server error occurred.", err)
		}
		prompt.Attachment = att
		file = &model.File{
			ID:          uuid.NewString(),
			UserID:      in.UserID,
			Filename:    in.File.Filename,
			ContentType: in.File.ContentType,
			Size:        int64(len(in.File.Data)),
			CreatedAt:   startedAt,
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	chunks := s.gateway.Stream(streamCtx, llm.Request{
		APIKey:            apiKey,
		SystemInstruction: instruction,
		History:           history,
		Prompt:            prompt,
	})

	turn := &Turn{
		svc:       s,
		requestID: in.RequestID,
		conv:      conv,
		created:   created,
		input:     in.Message,
		file:      file,
		startedAt: startedAt,
		chunks:    chunks,
		cancel:    cancel,
	}

	select {
	case c, ok := <-chunks:
		if ok && c.Err != nil {
			cancel()
			if llm.IsKeyError(c.Err) {
				return nil, newError(Unauthorized, badKeyMessage, c.Err)
			}
			return nil, newError(Internal, "An internal server error occurred.", c.Err)
		}
		if ok {
			turn.first = &c
		} else {
			turn.chunks = nil
		}
	case <-ctx.Done():
		cancel()
		return nil, newError(Internal, "Request cancelled", ctx.Err())
	}
	return turn, nil
}

// Relay writes the reply to w chunk by chunk, flushing after each one, then
// stores the turn. A gateway failure after the first chunk is reported inline
// and the partial reply is still stored; the returned error is then of kind
// UpstreamDegraded. If ctx ends or w fails, the gateway call is cancelled,
// nothing is stored and ErrClientGone is returned.
func (t *Turn) Relay(ctx context.Context, w StreamWriter) error {
	defer t.release()
	defer t.cancel()

	var reply strings.Builder
	write := func(text string) bool {
		reply.WriteString(text)
		if text == "" {
			return true
		}
		if _, err := io.WriteString(w, text); err != nil {
			return false
		}
		w.Flush()
		return true
	}

	var degraded error
	next := t.first
	for {
		var c llm.Chunk
		if next != nil {
			c, next = *next, nil
		} else if t.chunks == nil {
			break
		} else {
			var ok bool
			select {
			case c, ok = <-t.chunks:
			case <-ctx.Done():
				return ErrClientGone
			}
			if !ok {
				break
			}
		}

		if c.Err != nil {
			if ctx.Err() != nil {
				return ErrClientGone
			}
			logger.Warnf("[%s] stream error after first chunk: %s", t.requestID, c.Err)
			degraded = newError(UpstreamDegraded, strings.TrimSpace(errorNotice), c.Err)
			if !write(errorNotice) {
				return ErrClientGone
			}
			break
		}
		if !write(c.Text) {
			return ErrClientGone
		}
	}

	if ctx.Err() != nil {
		return ErrClientGone
	}
	t.persist(ctx, reply.String())
	return degraded
}

// persist stores both messages of the turn. Failures are only logged since
// the reply has already been delivered.
func (t *Turn) persist(ctx context.Context, reply string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	userMsg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: t.conv.ID,
		Role:           model.RoleUser,
		Content:        t.input,
		CreatedAt:      t.startedAt,
	}
	if t.file != nil {
		userMsg.FileID = &t.file.ID
	}

	replyAt := time.Now()
	if !replyAt.After(t.startedAt) {
		replyAt = t.startedAt.Add(time.Millisecond)
	}
	modelMsg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: t.conv.ID,
		Role:           model.RoleModel,
		Content:        reply,
		CreatedAt:      replyAt,
	}

	err := t.svc.store.SaveTurn(ctx, store.Turn{File: t.file, UserMessage: userMsg, ModelMessage: modelMsg})
	if err != nil {
		logger.Warnf("[%s] failed to save turn of conversation %s: %s", t.requestID, t.conv.ID, err)
		return
	}

	if t.created {
		if err := t.svc.store.UpdateTitle(ctx, t.conv.ID, model.TitleFor(t.input)); err != nil {
			logger.Warnf("[%s] failed to update title of conversation %s: %s", t.requestID, t.conv.ID, err)
		}
	}
}
