package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"room-chat/client"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL      string        `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8080/ws"`
	Token          string        `envconfig:"CHAT_TOKEN" required:"true"`
	RoomID         string        `envconfig:"CHAT_ROOM_ID" default:"general"`
	DisplayName    string        `envconfig:"CHAT_DISPLAY_NAME"`
	BackoffInitial time.Duration `envconfig:"CHAT_BACKOFF_INITIAL" default:"500ms"`
	BackoffMax     time.Duration `envconfig:"CHAT_BACKOFF_MAX" default:"30s"`
	MaxAttempts    int           `envconfig:"CHAT_MAX_ATTEMPTS" default:"8"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run joins one room, prints what the room says and sends every stdin line as a message.
func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := client.DefaultConfig()
	cfg.URL = config.ServerURL
	cfg.Token = config.Token
	cfg.DisplayName = config.DisplayName
	cfg.Backoff.Initial = config.BackoffInitial
	cfg.Backoff.Max = config.BackoffMax
	cfg.Backoff.MaxAttempts = config.MaxAttempts

	c := client.New(cfg, log)
	if err := c.Join(ctx, config.RoomID); err != nil {
		return exitRuntime, err
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, printOutbound) }()
	go readInput(ctx, c, config.RoomID)

	err := <-done
	switch {
	case err == nil:
		return exitOK, nil
	case stderrors.Is(err, client.ErrReconnectExhausted):
		return exitRuntime, err
	default:
		return exitRuntime, fmt.Errorf("stream error: %w", err)
	}
}

func readInput(ctx context.Context, c *client.Client, room string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.Send(ctx, room, line); err != nil {
			color.Red.Printf("! %v\n", err)
		}
	}
}

func printOutbound(out client.Outbound) {
	switch out.Command {
	case client.RoomJoined:
		color.Green.Printf("== joined %s (%d messages)\n", out.Room.Name, len(out.Messages))
		for _, m := range out.Messages {
			printMessage(m)
		}
	case client.RoomLeft:
		color.Green.Printf("== left %s\n", out.RoomID)
	case client.UserJoined:
		color.Gray.Printf("-> %s joined\n", out.UserName)
	case client.UserLeft:
		color.Gray.Printf("<- %s left\n", out.UserName)
	case client.Message:
		if m, ok := out.ChatMessage(); ok {
			printMessage(m)
		}
	case client.Error:
		color.Red.Printf("! %s\n", out.ErrorText())
	}
}

func printMessage(m client.ChatMessage) {
	fmt.Printf("%s %s %s\n",
		color.Gray.Sprint(m.CreatedAt.Local().Format("15:04:05")),
		color.Cyan.Sprint(m.SenderName+":"),
		m.Content)
}
