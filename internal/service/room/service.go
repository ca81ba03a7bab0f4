package room

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/pkg/randstr"
)

var (
	ErrKeyGenerationFailed = errors.New("failed to generate room id")
	ErrRoomDoesntExist     = errors.New("room doesn't exist")
	ErrRoomFull            = errors.New("room is full")
	ErrUserNotFound        = errors.New("user not found")
)

const (
	roomIDLetters          = "abcdefghijklmnopqrstuvwxyz0123456789"
	roomIDGenerateAttempts = 5
)

type iGenerator interface {
	GenerateRandomString(length int) string
}

type iRtcIssuer interface {
	Issue(name string) (domain.RtcConfig, error)
}

type iMetrics interface {
	SetRooms(n int)
}

type Config struct {
	MembersLimit int
	// Generator overrides the random room id source.
	Generator iGenerator
}

// service is the room registry. All room state lives behind mu.
type service struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	generator    iGenerator
	rtcIssuer    iRtcIssuer
	metrics      iMetrics
	membersLimit int
	logger       *slog.Logger
}

func NewService(rtcIssuer iRtcIssuer, metrics iMetrics, logger *slog.Logger, cfg *Config) *service {
	s := service{
		rooms:        make(map[string]*Room),
		generator:    cfg.Generator,
		rtcIssuer:    rtcIssuer,
		metrics:      metrics,
		membersLimit: cfg.MembersLimit,
		logger:       logger,
	}

	if s.generator == nil {
		s.generator = randstr.New([]byte(roomIDLetters))
	}
	if s.membersLimit < 1 {
		s.membersLimit = domain.MembersLimit
	}

	return &s
}

// roomsChanged must be called with mu held.
func (s *service) roomsChanged() {
	if s.metrics != nil {
		s.metrics.SetRooms(len(s.rooms))
	}
}
