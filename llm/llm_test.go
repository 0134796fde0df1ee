package llm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capstone/config"
)

func TestIsKeyError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("googleapi: Error 400: API key not valid. Please pass a valid API key."), true},
		{errors.New("rpc error: code = PermissionDenied desc = denied"), true},
		{errors.Wrap(errors.New("invalid api key"), "failed to stream"), true},
		{errors.New("503 Service Unavailable"), false},
		{errors.New("context deadline exceeded"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsKeyError(c.err), "%v", c.err)
	}
}

func collect(ch <-chan Chunk) (string, error) {
	var sb strings.Builder
	for c := range ch {
		if c.Err != nil {
			return sb.String(), c.Err
		}
		sb.WriteString(c.Text)
	}
	return sb.String(), nil
}

func TestMockStream(t *testing.T) {
	m := &Mock{}
	text, err := collect(m.Stream(context.Background(), Request{Prompt: Turn{Text: "hello there"}}))
	require.NoError(t, err)
	assert.Equal(t, "You said: hello there", text)
}

func TestMockStreamStopsOnCancel(t *testing.T) {
	m := NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	ch := m.Stream(ctx, Request{Prompt: Turn{Text: "one two three four five"}})
	<-ch
	cancel()
	for range ch {
	}
}

func TestNormalizeAttachment(t *testing.T) {
	att, err := NormalizeAttachment(nil)
	require.NoError(t, err)
	assert.Nil(t, att)

	att, err = NormalizeAttachment(&Attachment{
		Filename: "page.html",
		MIMEType: "text/html; charset=utf-8",
		Data:     []byte("<h1>Title</h1><p>Some <strong>bold</strong> text</p>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", att.MIMEType)
	assert.Contains(t, string(att.Data), "# Title")
	assert.Contains(t, string(att.Data), "**bold**")

	att, err = NormalizeAttachment(&Attachment{Filename: "a.png", MIMEType: "image/png", Data: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.MIMEType)

	att, err = NormalizeAttachment(&Attachment{Filename: "notes", Data: []byte("plain words")})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", att.MIMEType)
}

func TestLoadSystemInstruction(t *testing.T) {
	text, err := LoadSystemInstruction(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
	assert.Equal(t, DefaultSystemInstruction, text)

	path := filepath.Join(t.TempDir(), "personality.txt")
	require.NoError(t, os.WriteFile(path, []byte("Be terse."), 0o644))
	text, err = LoadSystemInstruction(path)
	require.NoError(t, err)
	assert.Equal(t, "Be terse.", text)
}

func TestNew(t *testing.T) {
	g, err := New(&config.Config{LLMProvider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, g)

	_, err = New(&config.Config{LLMProvider: "carrier-pigeon"})
	assert.Error(t, err)
}
