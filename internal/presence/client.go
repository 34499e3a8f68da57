package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client 문서 하나에 대한 프레즌스 채널 구독 (클라이언트 측)
type Client struct {
	conn       *websocket.Conn
	documentID string
	record     Record
	onSync     func(SyncPayload)

	writeMu sync.Mutex
	done    chan struct{}
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Dial 프레즌스 채널 연결. subscribed를 받으면 자신의 레코드를 track한다.
func Dial(ctx context.Context, baseURL, documentID, token string, rec Record, onSync func(SyncPayload)) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/presence/" + url.PathEscape(documentID)

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("presence dial %s: %w (status %d)", documentID, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("presence dial %s: %w", documentID, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Client{
		conn:       conn,
		documentID: documentID,
		record:     rec,
		onSync:     onSync,
		done:       make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// DocumentID 구독 중인 문서
func (c *Client) DocumentID() string {
	return c.documentID
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case TypeSubscribed:
			if err := c.send(Message{Type: TypeTrack, Payload: c.record}); err != nil {
				log.Warn().Err(err).Str("document", c.documentID).Msg("[Presence] track failed")
			}
		case TypeSync:
			var payload SyncPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if c.onSync != nil {
				c.onSync(payload)
			}
		case TypeError:
			log.Warn().RawJSON("payload", msg.Payload).Str("document", c.documentID).Msg("[Presence] server error")
		}
	}
}

func (c *Client) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(msg)
}

// Ping 생존 확인
func (c *Client) Ping() error {
	return c.send(Message{Type: TypePing})
}

// Close 채널 종료 (서버가 레코드를 제거하고 남은 참여자에게 sync를 보낸다)
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}
