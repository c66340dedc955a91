package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"room-chat/auth"
	"room-chat/client"
	"room-chat/domain"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config
	issuer *auth.Issuer
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL not set")
	}
	s.issuer = auth.NewIssuer([]byte(s.Config.JWTSecret))
}

func (s *BaseWsSuite) header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseWsSuite) Token(id, name string) string {
	token, err := s.issuer.GenerateToken(domain.Identity{ID: domain.IdentityID(id), DisplayName: name}, nil, time.Hour)
	s.Require().NoError(err)
	return token
}

// CreateRoom creates a room over HTTP, accepting one that already exists.
func (s *BaseWsSuite) CreateRoom(token, id, name string) {
	s.header("Create room " + id)
	body, _ := json.Marshal(map[string]string{"id": id, "name": name})
	request, err := http.NewRequest(http.MethodPost, s.Config.ServerURL+"/rooms", bytes.NewReader(body))
	s.Require().NoError(err)
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Content-Type", "application/json")

	response, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()
	s.Require().Contains([]int{http.StatusCreated, http.StatusConflict}, response.StatusCode)
}

// Session is a connected client and everything it received.
type Session struct {
	Client *client.Client
	Frames chan client.Outbound
}

// WithClient runs fn with a connected client, closed once fn returns.
func (s *BaseWsSuite) WithClient(name, token string, fn func(ctx context.Context, session Session)) {
	s.header(name)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := client.DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(s.Config.ServerURL, "http") + "/ws"
	cfg.Token = token
	cfg.Backoff.MaxAttempts = 2

	session := Session{
		Client: client.New(cfg, logs.GetLoggerFromLevel(slog.LevelWarn)),
		Frames: make(chan client.Outbound, 64),
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Client.Run(ctx, func(out client.Outbound) {
			if s.Config.DebugJSON {
				raw, _ := json.MarshalIndent(out, "", "  ")
				s.T().Log(string(raw))
			}
			select {
			case session.Frames <- out:
			case <-ctx.Done():
			}
		})
	}()

	fn(ctx, session)
	cancel()
	<-done
}

// Expect waits for the next frame with the given command, skipping others.
func (s *BaseWsSuite) Expect(session Session, command string) client.Outbound {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case out := <-session.Frames:
			if out.Command == command {
				return out
			}
		case <-timeout:
			s.FailNow("timed out waiting for " + command)
		}
	}
}
