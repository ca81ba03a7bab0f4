package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tvmate/server/internal/client/player"
	"github.com/tvmate/server/internal/client/room"
	"github.com/tvmate/server/internal/domain"
)

const (
	defaultTickPeriod = 500 * time.Millisecond
	eventBufferSize   = 64
)

var (
	ErrQuit           = errors.New("quit requested")
	ErrEventsOverflow = errors.New("fell too far behind room events")
)

type Config struct {
	ServerURL  string
	Name       string
	TickPeriod time.Duration
	Dialer     room.Dialer
	Clock      clock.Clock
}

// Client is a headless room member driving a virtual player.
type Client struct {
	Manager *room.Manager
	Player  *player.VirtualPlayer
	Engine  *player.Engine

	name       string
	tickPeriod time.Duration
	clock      clock.Clock
	out        io.Writer
	logger     *slog.Logger
}

func New(cfg *Config, out io.Writer, logger *slog.Logger) *Client {
	if cfg.Dialer == nil {
		cfg.Dialer = room.NewWebsocketDialer()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = defaultTickPeriod
	}

	manager := room.NewManager(cfg.ServerURL, cfg.Dialer, logger)
	vp := player.NewVirtualPlayer(cfg.Clock)

	return &Client{
		Manager:    manager,
		Player:     vp,
		Engine:     player.NewEngine(vp, manager, cfg.Clock, logger),
		name:       cfg.Name,
		tickPeriod: cfg.TickPeriod,
		clock:      cfg.Clock,
		out:        out,
		logger:     logger,
	}
}

// Run connects to roomCode (or hosts a new room when empty) and processes
// events and commands until ctx ends, the connection closes or /quit.
func (c *Client) Run(ctx context.Context, roomCode string, commands <-chan string) error {
	events, unsubscribe := c.Manager.Subscribe(eventBufferSize)
	defer unsubscribe()

	if err := c.Manager.HostJoin(ctx, c.name, roomCode); err != nil {
		return err
	}
	defer c.Manager.Leave()

	ticker := c.clock.Ticker(c.tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return ErrEventsOverflow
			}
			if done := c.handleEvent(event); done {
				return nil
			}

		case <-c.Player.Notify():
			for _, state := range c.Player.Events() {
				c.Engine.OnStateChange(state)
			}

		case <-ticker.C:
			c.Engine.OnTimeUpdate(c.Player.CurrentTime())

		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if err := c.Execute(line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

// Execute runs one user command. Lines not starting with a slash are chat.
func (c *Client) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if !strings.HasPrefix(line, "/") {
		return c.Manager.SendChat(line)
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/play":
		return c.Player.Play()
	case "/pause":
		return c.Player.Pause()
	case "/seek":
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid seek position %q: %w", arg, err)
		}
		c.Engine.Seek(t)
		return nil
	case "/select":
		if arg == "" {
			return errors.New("video name is required")
		}
		return c.Manager.SendMessage(domain.SelectedVideo{Name: arg}, room.Reliable)
	case "/quit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %s", command)
	}
}

func (c *Client) handleEvent(event room.Event) bool {
	switch e := event.(type) {
	case room.StateChangedEvent:
		if e.State == room.StateDisconnected {
			fmt.Fprintln(c.out, "disconnected")
			return true
		}

	case room.RoomUpdatedEvent:
		c.Engine.SetRoomStatus(e.Room.PlayerStatus)
		names := make([]string, 0, len(e.Room.Users))
		for _, u := range e.Room.Users {
			names = append(names, u.Name)
		}
		fmt.Fprintf(c.out, "room %s: %s\n", strings.ToUpper(e.Room.ID), strings.Join(names, ", "))

	case room.PlayerMessageEvent:
		c.Engine.OnRemote(e.Payload)

	case room.ChatEvent:
		fmt.Fprintf(c.out, "%s: %s\n", e.Message.Name, e.Message.Text)

	case room.NotificationEvent:
		fmt.Fprintf(c.out, "! %s\n", e.Message)

	case room.SignalEvent:
		c.logger.Debug("ignoring signaling message", "kind", e.Payload.Kind(), "from", e.From)
	}

	return false
}
