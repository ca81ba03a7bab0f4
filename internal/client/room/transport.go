package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize    = 64
	defaultWriteWait = 10 * time.Second
)

var ErrTransportClosed = errors.New("transport closed")

// Transport is a message-oriented duplex link to the server.
type Transport interface {
	// Send queues a binary frame.
	Send(b []byte) error
	// Receive blocks until the next binary frame or the link ends.
	Receive() ([]byte, error)
	// BufferedAmount is the number of queued bytes not yet written.
	BufferedAmount() int
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

type websocketDialer struct {
	dialer    *websocket.Dialer
	writeWait time.Duration
}

// NewWebsocketDialer returns a Dialer that never reconnects on its own.
func NewWebsocketDialer() *websocketDialer {
	return &websocketDialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		writeWait: defaultWriteWait,
	}
}

func (d *websocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	t := &websocketTransport{
		conn:      conn,
		queue:     make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		writeWait: d.writeWait,
	}
	go t.writePump()

	return t, nil
}

type websocketTransport struct {
	conn      *websocket.Conn
	queue     chan []byte
	buffered  atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration
}

func (t *websocketTransport) Send(b []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	t.buffered.Add(int64(len(b)))
	select {
	case t.queue <- b:
		return nil
	case <-t.done:
		t.buffered.Add(-int64(len(b)))
		return ErrTransportClosed
	}
}

func (t *websocketTransport) Receive() ([]byte, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.Close()
			return nil, err
		}

		if messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *websocketTransport) BufferedAmount() int {
	return int(t.buffered.Load())
}

func (t *websocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = t.conn.Close()
	})

	return err
}

func (t *websocketTransport) writePump() {
	for {
		select {
		case <-t.done:
			return
		case b := <-t.queue:
			err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
			if err == nil {
				err = t.conn.WriteMessage(websocket.BinaryMessage, b)
			}
			t.buffered.Add(-int64(len(b)))
			if err != nil {
				t.Close()
				return
			}
		}
	}
}
