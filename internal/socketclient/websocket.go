package socketclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"collab-backend/internal/relay"
)

type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// wsURL http(s) 기준 URL을 ws(s)로 변환
func wsURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = path
	return u.String(), nil
}

func dialWebSocket(ctx context.Context, opts Options) (transport, error) {
	target, err := wsURL(opts.URL, opts.Path)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &wsTransport{conn: conn, writeTimeout: opts.WriteTimeout, readTimeout: opts.ReadTimeout}, nil
}

func (t *wsTransport) name() string { return TransportWebSocket }

func (t *wsTransport) serve(ctx context.Context, out <-chan relay.Frame, in func(relay.Frame)) error {
	defer t.conn.Close()

	// 서버 ping이 끊기면 half-open 연결로 보고 read를 깨운다
	t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	t.conn.SetPingHandler(func(appData string) error {
		t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		err := t.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(t.writeTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := t.conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
			var f relay.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			in(f)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			t.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case f := <-out:
			t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := t.conn.WriteJSON(f); err != nil {
				return err
			}
		}
	}
}
