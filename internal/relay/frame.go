// Package relay 문서 단위 룸으로 편집/커서 이벤트를 중계하는 메시지 릴레이
package relay

import (
	"encoding/json"
	"fmt"
)

// 릴레이 이벤트 이름
const (
	EventCreateRoom        = "create-room"
	EventLeaveRoom         = "leave-room"
	EventSendChanges       = "send-changes"
	EventReceiveChanges    = "receive-changes"
	EventSendCursorMove    = "send-cursor-move"
	EventReceiveCursorMove = "receive-cursor-move"
	EventPing              = "ping"
	EventPong              = "pong"
)

// Frame 와이어 프레임: 이벤트 이름 + 위치 인자 목록 (+ 선택적 ack ID)
// Event가 비어 있고 Ack가 있으면 ack 응답이다.
type Frame struct {
	Event string            `json:"event,omitempty"`
	Args  []json.RawMessage `json:"args,omitempty"`
	Ack   *int64            `json:"ack,omitempty"`
}

// IsAck ack 응답 프레임인지
func (f Frame) IsAck() bool {
	return f.Event == "" && f.Ack != nil
}

// Arg i번째 인자를 v로 디코딩
func (f Frame) Arg(i int, v any) error {
	if i >= len(f.Args) {
		return fmt.Errorf("missing argument %d for %q", i, f.Event)
	}
	return json.Unmarshal(f.Args[i], v)
}

// StringArg i번째 문자열 인자 (없거나 문자열이 아니면 "")
func (f Frame) StringArg(i int) string {
	var s string
	if err := f.Arg(i, &s); err != nil {
		return ""
	}
	return s
}

// NewFrame 인자를 JSON으로 인코딩해 프레임 생성
func NewFrame(event string, args ...any) (Frame, error) {
	raw, err := EncodeArgs(args...)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Args: raw}, nil
}

// AckFrame ack 응답 프레임 생성
func AckFrame(id int64, args ...any) (Frame, error) {
	raw, err := EncodeArgs(args...)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Args: raw, Ack: &id}, nil
}

// EncodeArgs 인자 목록 인코딩 (이미 RawMessage면 그대로)
func EncodeArgs(args ...any) ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		if r, ok := a.(json.RawMessage); ok {
			raw = append(raw, r)
			continue
		}
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return raw, nil
}

// PingAck ping 이벤트의 ack 페이로드
type PingAck struct {
	OK             bool   `json:"ok"`
	ServerSocketID string `json:"serverSocketId"`
}
