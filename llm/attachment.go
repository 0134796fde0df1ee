package llm

import (
	"mime"
	"net/http"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/pkg/errors"
)

// NormalizeAttachment fills in a missing media type and converts HTML
// documents to markdown text, which every backend accepts inline.
func NormalizeAttachment(att *Attachment) (*Attachment, error) {
	if att == nil {
		return nil, nil
	}

	mediaType := att.MIMEType
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		if sniffed, _, err := mime.ParseMediaType(http.DetectContentType(att.Data)); err == nil {
			mediaType = sniffed
		}
	}

	if mediaType != "text/html" {
		return &Attachment{Filename: att.Filename, MIMEType: mediaType, Data: att.Data}, nil
	}

	content, err := htmltomarkdown.ConvertString(string(att.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert %s to markdown", att.Filename)
	}
	return &Attachment{Filename: att.Filename, MIMEType: "text/plain", Data: []byte(content)}, nil
}
