package room

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tvmate/server/internal/domain"
)

const turnCredentialsTTL = 3600 * time.Second

var ErrMissingTurnSecret = errors.New("turn secret is not configured")

type RtcIssuerConfig struct {
	StunURL string
	TurnURL string
	// Secret is called on every issuance.
	Secret func() string
	Clock  clock.Clock
}

type rtcIssuer struct {
	stunURL string
	turnURL string
	secret  func() string
	clock   clock.Clock
}

func NewRtcIssuer(cfg *RtcIssuerConfig) *rtcIssuer {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &rtcIssuer{
		stunURL: cfg.StunURL,
		turnURL: cfg.TurnURL,
		secret:  cfg.Secret,
		clock:   c,
	}
}

// Issue returns TURN REST credentials for name valid for one hour.
func (i *rtcIssuer) Issue(name string) (domain.RtcConfig, error) {
	var secret string
	if i.secret != nil {
		secret = i.secret()
	}
	if secret == "" {
		return domain.RtcConfig{}, ErrMissingTurnSecret
	}

	turnUser := fmt.Sprintf("%d:%s", i.clock.Now().Add(turnCredentialsTTL).Unix(), name)

	mac := hmac.New(sha1.New, []byte(secret))
	if _, err := mac.Write([]byte(turnUser)); err != nil {
		return domain.RtcConfig{}, fmt.Errorf("failed to sign turn user: %w", err)
	}

	return domain.RtcConfig{
		Stun:      i.stunURL,
		Turn:      i.turnURL,
		TurnUser:  turnUser,
		TurnCreds: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}, nil
}
