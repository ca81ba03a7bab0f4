package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/internal/service/room"
	"github.com/tvmate/server/pkg/validator"
	"github.com/tvmate/server/pkg/wsrouter"
)

const (
	defaultPingPeriod     = 30 * time.Second
	defaultWriteWait      = 10 * time.Second
	defaultMaxMessageSize = 64 * 1024
	closeWriteWait        = 2 * time.Second
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (domain.RoomJoinInfo, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (domain.RoomJoinInfo, error)
	RemoveUser(roomID string, userID uuid.UUID) (room.RemoveUserResponse, bool)
	BroadcastExcluding(ctx context.Context, roomID string, msg domain.Message, excluded ...uuid.UUID) error
	SendTo(ctx context.Context, roomID string, userID uuid.UUID, msg domain.Message) error
	UpdatePlayerStatus(roomID string, payload domain.Payload) (domain.PlayerStatus, error)
	SelectVideo(roomID string, userID uuid.UUID, name string) error
	RoomInfo(roomID string) (domain.RoomMetaInfo, error)
}

type iCooldown interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

type iMetrics interface {
	SessionOpened()
	SessionClosed()
	MessageRelayed(kind string)
	DecodeFailed()
	JoinFailed(reason string)
	Handler() http.Handler
}

type Config struct {
	PingPeriod time.Duration
	WriteWait  time.Duration
}

type controller struct {
	roomService iRoomService
	cooldown    iCooldown
	metrics     iMetrics
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter[domain.Message]
	logger      *slog.Logger

	pingPeriod time.Duration
	pongWait   time.Duration
	writeWait  time.Duration
}

func NewController(roomService iRoomService, cooldown iCooldown, metrics iMetrics, logger *slog.Logger, cfg *Config) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		cooldown:    cooldown,
		metrics:     metrics,
		validate:    validator.NewValidator(),
		logger:      logger,
		pingPeriod:  cfg.PingPeriod,
		writeWait:   cfg.WriteWait,
	}

	if c.pingPeriod <= 0 {
		c.pingPeriod = defaultPingPeriod
	}
	if c.writeWait <= 0 {
		c.writeWait = defaultWriteWait
	}
	// the peer has until the next ping plus a grace period to answer
	c.pongWait = c.pingPeriod * 3 / 2

	c.wsmux = c.initWSRouter()

	return c
}
