package room

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/tvmate/server/internal/domain"
)

// BroadcastExcluding queues msg for every member of the room except excluded.
// Recipients are captured under the read lock and served concurrently outside
// it. A failed delivery is logged and does not affect other recipients.
func (s *service) BroadcastExcluding(ctx context.Context, roomID string, msg domain.Message, excluded ...uuid.UUID) error {
	var recipients []*Member
	ok := s.WithRoom(roomID, func(r *Room) {
		recipients = make([]*Member, 0, len(r.members))
		for _, m := range r.members {
			if !slices.Contains(excluded, m.id) {
				recipients = append(recipients, m)
			}
		}
	})
	if !ok {
		return ErrRoomDoesntExist
	}

	var wg conc.WaitGroup
	for _, m := range recipients {
		wg.Go(func() {
			if err := m.deliver(ctx, msg); err != nil {
				s.logger.WarnContext(ctx, "failed to deliver message",
					"room_id", roomID,
					"recipient_id", m.id,
					"kind", msg.Type(),
					"error", err,
				)
			}
		})
	}
	wg.Wait()

	return nil
}

// SendTo queues msg for a single member.
func (s *service) SendTo(ctx context.Context, roomID string, userID uuid.UUID, msg domain.Message) error {
	var recipient *Member
	ok := s.WithRoom(roomID, func(r *Room) {
		recipient, _ = r.Member(userID)
	})
	if !ok {
		return ErrRoomDoesntExist
	}
	if recipient == nil {
		return ErrUserNotFound
	}

	if err := recipient.deliver(ctx, msg); err != nil {
		return fmt.Errorf("failed to deliver to %s: %w", userID, err)
	}

	return nil
}
