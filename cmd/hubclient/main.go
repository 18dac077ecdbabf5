// Command hubclient is a terminal client for the realtime hub. It joins the
// rooms given by -rooms and sends each stdin line as a chat message to the
// first of them.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freshershub/internal/apiclient"
	"freshershub/internal/bus"
	"freshershub/internal/config"
	"freshershub/internal/database"
	"freshershub/internal/features"
	"freshershub/internal/notify"
	"freshershub/internal/realtime"
	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

type options struct {
	rooms     []string
	token     string
	storePath string
}

func main() {
	configPath := flag.String("config", "", "path to a json, yaml or toml config file")
	rooms := flag.String("rooms", "", "comma separated chat rooms to join")
	token := flag.String("token", "", "bearer token to cache before connecting")
	storePath := flag.String("store", "./data/hubclient.db", "token cache database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{rooms: parseRooms(*rooms), token: *token, storePath: *storePath}
	if err := run(ctx, cfg, log, opts, os.Stdin, os.Stdout); err != nil {
		log.Error("client stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger, opts options, in io.Reader, out io.Writer) error {
	if err := os.MkdirAll(filepath.Dir(opts.storePath), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	dbCfg := cfg.Database
	dbCfg.DatabasePath = opts.storePath
	store, err := database.NewManager(&dbCfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.token != "" {
		if err := store.SetToken(ctx, opts.token); err != nil {
			return fmt.Errorf("cache token: %w", err)
		}
	}
	token, err := cachedToken(ctx, store)
	if err != nil {
		return err
	}

	events := bus.New(log)
	session := realtime.NewSession(
		realtime.NewWebSocketDialer(cfg.Realtime.ServerURL, log),
		store,
		events,
		realtime.WithConfig(cfg.Realtime.Config),
		realtime.WithLogger(log),
	)

	surface := notify.NewSurface(events, notify.NewLogRenderer(log), notify.WithConfig(cfg.Notify), notify.WithLogger(log))
	surface.Attach()
	defer surface.Detach()

	chat := features.NewChat(session, apiclient.New(cfg.Realtime.APIURL, token, 0), log)
	defer chat.Close()
	chat.OnMessage = func(msg *types.ChatMessage) {
		name := "?"
		if msg.Sender != nil {
			name = msg.Sender.Name
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", msg.RoomID, name, msg.Message)
	}

	// rooms are requested on every (re)authentication; the server forgets them on disconnect
	joinSub := bus.Subscribe(events, types.EventAuthenticated, func(*types.Authenticated) {
		for _, room := range opts.rooms {
			chat.JoinRoom(room)
			go func(room string) {
				if err := chat.LoadHistory(ctx, room); err != nil {
					log.Warn("history unavailable", zap.String("room", room), zap.Error(err))
				}
			}(room)
		}
	})
	defer events.Off(joinSub)

	session.Connect(ctx)
	defer session.Disconnect()

	g, gctx := errgroup.WithContext(ctx)
	lines := readLines(gctx, in)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok || line == "/quit" {
					return nil
				}
				if len(opts.rooms) == 0 || strings.TrimSpace(line) == "" {
					continue
				}
				if err := chat.SendMessage(opts.rooms[0], line, types.ChatMessageText); err != nil {
					log.Warn("message not sent", zap.Error(err))
				}
			}
		}
	})
	return g.Wait()
}

// cachedToken returns the stored token; an empty store is not an error
func cachedToken(ctx context.Context, store interfaces.CredentialStore) (string, error) {
	token, err := store.Token(ctx)
	if errors.Is(err, interfaces.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cached token: %w", err)
	}
	return token, nil
}

// readLines feeds in line by line until it ends or ctx is done. The reader
// goroutine itself may stay parked in Read, but never on the channel.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// parseRooms splits a comma separated list, dropping blanks
func parseRooms(s string) []string {
	var rooms []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			rooms = append(rooms, r)
		}
	}
	return rooms
}
