package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tvmate/server/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrEmptyFrame  = errors.New("empty frame")
	ErrNilPayload  = errors.New("message has no payload")
	ErrUnknownKind = errors.New("unknown message kind")
)

// frame is a discriminant plus an opaque payload. Field names are the
// only compatibility contract between versions.
type frame struct {
	Kind    domain.Kind        `json:"kind"`
	From    uuid.UUID          `json:"from"`
	Payload msgpack.RawMessage `json:"payload"`
}

func Encode(msg domain.Message) ([]byte, error) {
	if msg.Payload == nil {
		return nil, ErrNilPayload
	}

	payload, err := marshal(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msg.Payload.Kind(), err)
	}

	b, err := marshal(frame{
		Kind:    msg.Payload.Kind(),
		From:    msg.From,
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	return b, nil
}

func Decode(b []byte) (domain.Message, error) {
	if len(b) == 0 {
		return domain.Message{}, ErrEmptyFrame
	}

	var f frame
	if err := unmarshal(b, &f); err != nil {
		return domain.Message{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	payload, err := decodePayload(f.Kind, f.Payload)
	if err != nil {
		return domain.Message{}, err
	}

	return domain.Message{From: f.From, Payload: payload}, nil
}

func decodePayload(kind domain.Kind, raw msgpack.RawMessage) (domain.Payload, error) {
	switch kind {
	case domain.KindRoomCreated:
		return decodeAs[domain.RoomCreated](raw)
	case domain.KindRoomJoined:
		return decodeAs[domain.RoomJoined](raw)
	case domain.KindUserJoined:
		return decodeAs[domain.UserJoined](raw)
	case domain.KindUserLeft:
		return decodeAs[domain.UserLeft](raw)
	case domain.KindError:
		return decodeAs[domain.Error](raw)
	case domain.KindSelectedVideo:
		return decodeAs[domain.SelectedVideo](raw)
	case domain.KindPlay:
		return decodeAs[domain.Play](raw)
	case domain.KindPause:
		return decodeAs[domain.Pause](raw)
	case domain.KindSeek:
		return decodeAs[domain.Seek](raw)
	case domain.KindUpdate:
		return decodeAs[domain.Update](raw)
	case domain.KindChat:
		return decodeAs[domain.Chat](raw)
	case domain.KindSendSessionDesc:
		return decodeAs[domain.SendSessionDesc](raw)
	case domain.KindReceivedSessionDesc:
		return decodeAs[domain.ReceivedSessionDesc](raw)
	case domain.KindExchangeCandidate:
		return decodeAs[domain.ExchangeCandidate](raw)
	case domain.KindRequestCall:
		return decodeAs[domain.RequestCall](raw)
	case domain.KindRequestVideoShare:
		return decodeAs[domain.RequestVideoShare](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeAs[T domain.Payload](raw msgpack.RawMessage) (domain.Payload, error) {
	var p T
	if err := unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", p.Kind(), err)
	}

	return p, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func unmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")

	return dec.Decode(v)
}
