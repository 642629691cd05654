package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rfpgpt/rfpgpt/internal/auth"
	"github.com/rfpgpt/rfpgpt/internal/bus"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/config"
	"github.com/rfpgpt/rfpgpt/internal/docs"
	"github.com/rfpgpt/rfpgpt/internal/history"
	"github.com/rfpgpt/rfpgpt/internal/logging"
	"github.com/rfpgpt/rfpgpt/internal/profile"
	"github.com/rfpgpt/rfpgpt/internal/send"
	"github.com/rfpgpt/rfpgpt/internal/transport"
	"go.uber.org/zap"
)

// env bundles the assembled client pieces a command needs.
type env struct {
	profileName string
	cfg         *config.Config
	client      *transport.Client
	store       *chat.Store
	pipeline    *send.Pipeline
	uploader    *docs.Uploader
	logger      *zap.Logger
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// login and history work without a reachable backend.
	switch args[0] {
	case "login":
		cmdLogin(profileName, args[1:])
		return
	case "history":
		cmdHistory(profileName, args[1:], *jsonFlag)
		return
	}

	e, err := buildEnv(profileName)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = e.logger.Sync() }()

	switch args[0] {
	case "sessions":
		cmdSessions(e, args[1:], *jsonFlag)
	case "send":
		cmdSend(e, args[1:])
	case "upload":
		cmdUpload(e, args[1:])
	case "docs":
		cmdDocs(e, args[1:], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: rfpctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login <token>              Store the API bearer token")
	fmt.Fprintln(os.Stderr, "  sessions list              List chat sessions")
	fmt.Fprintln(os.Stderr, "  sessions new <title>       Create a chat session")
	fmt.Fprintln(os.Stderr, "  sessions rm <id>           Delete a chat session")
	fmt.Fprintln(os.Stderr, "  send <session-id|new> <text>  Send a message and print the reply")
	fmt.Fprintln(os.Stderr, "  upload <session-id> <file>...  Upload documents to a session")
	fmt.Fprintln(os.Stderr, "  docs <session-id>          List a session's documents")
	fmt.Fprintln(os.Stderr, "  history search <query>     Search the local transcript archive")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func buildEnv(profileName string) (*env, error) {
	if err := profile.EnsureDir(profileName); err != nil {
		return nil, err
	}
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(profile.LogPath(profileName), profileName)
	if err != nil {
		return nil, err
	}
	token, err := auth.LoadToken(profile.TokenPath(profileName))
	if err != nil {
		return nil, err
	}
	tokens := auth.NewHolder(token)
	refresher := auth.FileRefresher{Path: profile.TokenPath(profileName)}
	client := transport.New(cfg.APIBaseURL, tokens, refresher, logger)

	defaults := chat.Settings{
		Persona:       cfg.Persona,
		ResponseStyle: cfg.ResponseStyle,
		CiteSources:   cfg.CiteSources,
		FollowUps:     cfg.FollowUps,
	}

	b := bus.New()
	store := chat.NewStore(client, b, logger)
	return &env{
		profileName: profileName,
		cfg:         cfg,
		client:      client,
		store:       store,
		pipeline:    send.NewPipeline(store, client, b, defaults, logger),
		uploader:    docs.NewUploader(client, store, b, defaults, logger),
		logger:      logger,
	}, nil
}

func cmdLogin(profileName string, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: rfpctl login <token>")
		os.Exit(1)
	}
	if err := auth.SaveToken(profile.TokenPath(profileName), args[0]); err != nil {
		fatal(err)
	}
	fmt.Println("Token saved.")
}

func cmdSessions(e *env, args []string, jsonOut bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rfpctl sessions <list|new|rm>")
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		sessions, err := e.client.ListChats(ctx)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(sessions)
			return
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return
		}
		for _, s := range sessions {
			fmt.Printf("%-36s  %s\n", s.ID, s.Title)
		}
	case "new":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: rfpctl sessions new <title>")
			os.Exit(1)
		}
		title := strings.Join(args[1:], " ")
		sess, err := e.store.CreateSession(ctx, title, chat.Settings{
			Persona:       e.cfg.Persona,
			ResponseStyle: e.cfg.ResponseStyle,
			CiteSources:   e.cfg.CiteSources,
			FollowUps:     e.cfg.FollowUps,
		})
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created session %s\n", sess.ID)
	case "rm":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: rfpctl sessions rm <id>")
			os.Exit(1)
		}
		if err := e.client.DeleteChat(ctx, args[1]); err != nil {
			fatal(err)
		}
		fmt.Println("Deleted.")
	default:
		fmt.Fprintf(os.Stderr, "unknown sessions subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

// activate loads the session list and makes the given session current.
func activate(ctx context.Context, e *env, sessionID string) error {
	if err := e.store.LoadSessions(ctx); err != nil {
		return err
	}
	for _, s := range e.store.Sessions() {
		if s.ID == sessionID {
			e.store.SetCurrentSession(s)
			return nil
		}
	}
	return fmt.Errorf("session %q not found", sessionID)
}

func cmdSend(e *env, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: rfpctl send <session-id|new> <text>")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if args[0] != "new" {
		if err := activate(ctx, e, args[0]); err != nil {
			fatal(err)
		}
	}

	text := strings.Join(args[1:], " ")
	if err := e.pipeline.Send(ctx, text); err != nil {
		fatal(err)
	}

	// The reply is the last assistant message in the transcript.
	msgs := e.store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant {
			fmt.Println(msgs[i].Content)
			return
		}
	}
}

func cmdUpload(e *env, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: rfpctl upload <session-id> <file>...")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := activate(ctx, e, args[0]); err != nil {
		fatal(err)
	}

	var files []docs.File
	var handles []*os.File
	defer func() {
		for _, h := range handles {
			_ = h.Close()
		}
	}()
	for _, path := range args[1:] {
		f, err := os.Open(path)
		if err != nil {
			fatal(err)
		}
		handles = append(handles, f)
		info, err := f.Stat()
		if err != nil {
			fatal(err)
		}
		files = append(files, docs.File{
			Name:    info.Name(),
			Size:    info.Size(),
			MIME:    "application/octet-stream",
			Content: f,
		})
	}

	if err := e.uploader.UploadFromPanel(ctx, files...); err != nil {
		fatal(err)
	}
	for _, m := range e.store.Messages() {
		if m.Role == chat.RoleAssistant {
			fmt.Println(m.Content)
		}
	}
	if banner := e.store.Banner(); banner != "" {
		fmt.Fprintf(os.Stderr, "error: %s\n", banner)
		os.Exit(1)
	}
}

func cmdDocs(e *env, args []string, jsonOut bool) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: rfpctl docs <session-id>")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	list, err := e.client.ListDocuments(ctx, args[0])
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(list)
		return
	}
	if len(list) == 0 {
		fmt.Println("No documents.")
		return
	}
	for _, d := range list {
		fmt.Printf("%-36s  %-10s  %s\n", d.ID, d.Status, d.Title)
	}
}

func cmdHistory(profileName string, args []string, jsonOut bool) {
	if len(args) < 2 || args[0] != "search" {
		fmt.Fprintln(os.Stderr, "usage: rfpctl history search <query>")
		os.Exit(1)
	}
	db, err := history.Open(profile.ArchiveDBPath(profileName))
	if err != nil {
		fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		fatal(err)
	}

	query := strings.Join(args[1:], " ")
	results, err := db.SearchMessages(query, "", 50)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}
	for _, r := range results {
		ts := time.UnixMilli(r.Message.Timestamp).Format("2006-01-02 15:04")
		fmt.Printf("%s  [%s] %s\n", ts, r.Message.Role, r.Snippet)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
