// Command tutor-chat is a terminal client for the tutoring backend. It
// loads the user's sessions, keeps the realtime channel connected, tails
// the persisted transcript from the database when DATABASE_URL is set, and
// drives voice calls from slash commands.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tanyagray/arabic-voice-agent-sub000/internal/config"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/core/types"
	"github.com/tanyagray/arabic-voice-agent-sub000/pkg/feed"
	tutor "github.com/tanyagray/arabic-voice-agent-sub000/sdk"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tutor-chat:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	client := tutor.NewClient(
		tutor.WithBaseURL(cfg.APIURL),
		tutor.WithTokenSource(tutor.StaticTokenSource(cfg.AccessToken)),
		tutor.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	directory := client.NewDirectory()
	if err := directory.Load(ctx); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	sessionID := directory.ActiveID()
	fmt.Printf("session %s (%d total)\n", sessionID, len(directory.Sessions()))

	var transcripts *feed.Feed
	if cfg.DatabaseURL != "" {
		transcripts = feed.New(feed.Config{ConnString: cfg.DatabaseURL}, logger)
		go func() {
			if err := transcripts.Run(ctx, sessionID); err != nil && ctx.Err() == nil {
				logger.Warn("transcript feed stopped", "error", err)
			}
		}()
	}

	channel := client.NewChannel(tutor.ChannelConfig{ReconnectDelay: cfg.ReconnectDelay})
	defer channel.Close()
	channel.Log().OnAppend(printEntry)
	if err := channel.Connect(ctx, sessionID); err != nil {
		// The channel keeps retrying on its own; chat falls back to HTTP
		// in the meantime.
		logger.Warn("realtime channel unavailable", "error", err)
	}

	sender := client.NewChatSender(channel.Log())

	voice := client.NewVoiceTransport(tutor.VoiceConfig{})
	calls := client.NewCallController(tutor.CallConfig{
		Voice:   voice,
		OnReady: func() { voice.EnableMic(true) },
	})

	fmt.Println("commands: /call /end /mute /unmute /sessions /new /transcript /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := command(ctx, line, client, directory, channel, calls, transcripts); quit {
				return nil
			}
			continue
		}
		send(ctx, line, sender, directory, channel)
	}
	return scanner.Err()
}

// send prefers the realtime channel and falls back to the HTTP chat
// endpoint when the channel is down. The HTTP path renders the message as
// pending until the server accepts it.
func send(ctx context.Context, text string, sender *tutor.ChatSender, directory *tutor.Directory, channel *tutor.Channel) {
	if err := channel.Send(text); err == nil {
		return
	} else if !core.IsNotConnected(err) {
		fmt.Println("! send failed:", err)
		return
	}

	if _, err := sender.Send(ctx, directory.ActiveID(), text); err != nil {
		fmt.Println("! message not delivered:", err)
	}
}

func command(ctx context.Context, line string, client *tutor.Client, directory *tutor.Directory, channel *tutor.Channel, calls *tutor.CallController, transcripts *feed.Feed) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/call":
		if err := calls.StartCall(ctx, directory.ActiveID()); err != nil {
			fmt.Println("! call failed:", err)
		} else {
			fmt.Println("* calling")
		}
	case "/end":
		calls.EndCall()
		fmt.Println("* back to chat")
	case "/mute":
		calls.SetMuted(true)
	case "/unmute":
		calls.SetMuted(false)
	case "/sessions":
		for _, s := range directory.Sessions() {
			marker := " "
			if s.SessionID == directory.ActiveID() {
				marker = "*"
			}
			fmt.Printf("%s %s %s\n", marker, s.SessionID, s.CreatedAt.Format("2006-01-02 15:04"))
		}
	case "/new":
		created, err := directory.CreateSession(ctx)
		if err != nil {
			fmt.Println("! create failed:", err)
			break
		}
		if err := channel.Connect(ctx, created.SessionID); err != nil {
			fmt.Println("! channel:", err)
		}
		fmt.Println("* session", created.SessionID)
	case "/transcript":
		var persisted []types.TranscriptMessage
		if transcripts != nil {
			persisted = transcripts.Messages()
		}
		live := calls.Reducer().Snapshot(directory.ActiveID())
		for _, m := range tutor.MergeTranscript(persisted, live) {
			who := "tutor"
			if m.IsUser {
				who = "you"
			}
			fmt.Printf("[%s] %s\n", who, m.Text)
		}
	default:
		fmt.Println("! unknown command:", fields[0])
	}
	return false
}

func printEntry(entry tutor.ChatEntry) {
	who := "tutor"
	if entry.IsUser {
		who = "you"
	}
	fmt.Printf("[%s] %s\n", who, entry.Text)
}
