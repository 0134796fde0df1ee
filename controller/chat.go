package controller

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"capstone/service"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	chat           *service.ChatService
	maxUploadBytes int64
}

func NewChatController(chat *service.ChatService, maxUploadBytes int64) *ChatController {
	return &ChatController{chat: chat, maxUploadBytes: maxUploadBytes}
}

// Chat streams the model reply to a multipart chat message as plain text.
func (ch ChatController) Chat(c *gin.Context) {
	requestID := c.GetString("requestId")

	var input struct {
		Message        string                `form:"message"`
		ConversationID string                `form:"conversationId"`
		APIKey         string                `form:"apiKey"`
		File           *multipart.FileHeader `form:"file"`
	}
	if ch.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ch.maxUploadBytes)
	}
	if err := c.ShouldBind(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", requestID, err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	upload, err := readUpload(input.File)
	if err != nil {
		logger.Warnf("[%s] read upload error, %s", requestID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	turn, err := ch.chat.StartTurn(c.Request.Context(), service.TurnInput{
		RequestID:      requestID,
		UserID:         c.GetString("UserId"),
		ConversationID: input.ConversationID,
		Message:        input.Message,
		APIKey:         input.APIKey,
		File:           upload,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if turn.Created() {
		w.Header().Set("x-conversation-id", turn.ConversationID())
	}
	w.WriteHeader(http.StatusOK)
	w.Flush()

	switch err := turn.Relay(c.Request.Context(), w); {
	case errors.Is(err, service.ErrClientGone):
		logger.Infof("[%s] client left conversation %s mid-stream", requestID, turn.ConversationID())
	case err != nil:
		logger.Warnf("[%s] conversation %s reply degraded: %s", requestID, turn.ConversationID(), err)
	default:
		logger.Infof("[%s] conversation %s reply finished", requestID, turn.ConversationID())
	}
}

func readUpload(fh *multipart.FileHeader) (*service.Upload, error) {
	if fh == nil {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
