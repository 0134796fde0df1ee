package cmd

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"capstone/client"
	"capstone/model"

	"github.com/spf13/cobra"
)

var chatOpts struct {
	server       string
	email        string
	password     string
	apiKey       string
	conversation string
	file         string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running server from the terminal",
	Long: `Reads one message per line from stdin and prints the streamed reply.
Commands: /list, /open <id>, /new, /delete, /quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	f := chatCmd.Flags()
	f.StringVar(&chatOpts.server, "server", "http://localhost:8080", "server base URL")
	f.StringVar(&chatOpts.email, "email", "", "account e-mail")
	f.StringVar(&chatOpts.password, "password", "", "account password")
	f.StringVar(&chatOpts.apiKey, "api-key", "", "model API key, the server default is used when empty")
	f.StringVar(&chatOpts.conversation, "conversation", "", "conversation to continue")
	f.StringVar(&chatOpts.file, "file", "", "file attached to the first message")
	_ = chatCmd.MarkFlagRequired("email")
	_ = chatCmd.MarkFlagRequired("password")
}

// chatSession prints streamed replies of the active conversation as the
// cache changes.
type chatSession struct {
	out     io.Writer
	active  string
	replyID string
	printed int
}

func (s *chatSession) Navigate(path string) {
	if id := strings.TrimPrefix(path, "/chat/"); id != path {
		s.active = id
		return
	}
	s.active = ""
}

func (s *chatSession) onChange(list []client.Conversation) {
	for _, conv := range list {
		if conv.ID != s.active || len(conv.Messages) == 0 {
			continue
		}
		last := conv.Messages[len(conv.Messages)-1]
		if last.Role != model.RoleModel || !strings.HasPrefix(last.ID, "local-") {
			return
		}
		if last.ID != s.replyID {
			s.replyID, s.printed = last.ID, 0
		}
		if len(last.Content) > s.printed {
			fmt.Fprint(s.out, last.Content[s.printed:])
			s.printed = len(last.Content)
		}
		return
	}
}

func runChat(cmd *cobra.Command, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()

	api := client.NewAPI(chatOpts.server)
	if err := api.Login(ctx, chatOpts.email, chatOpts.password); err != nil {
		return err
	}

	session := &chatSession{out: out, active: chatOpts.conversation}
	cache := client.NewCache()
	cache.Subscribe(session.onChange)
	store := client.NewStore(api, cache, session)

	if err := store.Refresh(ctx); err != nil {
		return err
	}
	if session.active != "" {
		if err := openConversation(cmd, store, session, session.active); err != nil {
			return err
		}
	}

	attachment, err := readAttachment(chatOpts.file)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/new":
			session.Navigate("/chat")
			continue
		case line == "/list":
			for _, conv := range cache.Conversations() {
				fmt.Fprintf(out, "%s  %s  %s\n", conv.ID, conv.CreatedAt.Format("2006-01-02 15:04"), conv.Title)
			}
			continue
		case strings.HasPrefix(line, "/open "):
			if err := openConversation(cmd, store, session, strings.TrimSpace(strings.TrimPrefix(line, "/open "))); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
			continue
		case line == "/delete":
			if session.active == "" {
				fmt.Fprintln(out, "no conversation selected")
				continue
			}
			if err := store.Delete(ctx, session.active, session.active); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
			continue
		}

		if _, err := store.Send(ctx, session.active, client.SendInput{
			Message: line,
			APIKey:  chatOpts.apiKey,
			File:    attachment,
		}); err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		attachment = nil
		fmt.Fprintln(out)
	}
}

func openConversation(cmd *cobra.Command, store *client.Store, session *chatSession, id string) error {
	if err := store.Open(cmd.Context(), id); err != nil {
		return err
	}
	session.active = id
	conv, _ := store.Cache().Get(id)
	out := cmd.OutOrStdout()
	for _, msg := range conv.Messages {
		fmt.Fprintf(out, "[%s] %s\n", msg.Role, msg.Content)
	}
	return nil
}

func readAttachment(path string) (*client.FileUpload, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &client.FileUpload{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}
