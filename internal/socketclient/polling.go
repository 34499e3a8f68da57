package socketclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"collab-backend/internal/relay"
)

// ErrSessionLost 서버가 롱폴링 세션을 더 이상 알지 못함
var ErrSessionLost = errors.New("polling session lost")

const submitBatch = 64

type pollTransport struct {
	endpoint string
	token    string
	sid      string
	http     *http.Client
}

func dialPolling(ctx context.Context, opts Options) (transport, error) {
	base := opts.URL + opts.Path + "/poll"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/handshake", nil)
	if err != nil {
		return nil, err
	}
	setAuth(req, opts.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling handshake: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("polling handshake: status %s", resp.Status)
	}

	var hs relay.Handshake
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return nil, fmt.Errorf("polling handshake: %w", err)
	}
	if hs.SID == "" {
		return nil, errors.New("polling handshake: empty sid")
	}

	// 서버 대기 시간보다 넉넉하게
	timeout := time.Duration(hs.PingTimeout)*time.Millisecond + 10*time.Second
	return &pollTransport{
		endpoint: base + "?sid=" + url.QueryEscape(hs.SID),
		token:    opts.Token,
		sid:      hs.SID,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

func setAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (t *pollTransport) name() string { return TransportPolling }

func (t *pollTransport) serve(ctx context.Context, out <-chan relay.Frame, in func(relay.Frame)) error {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pollErr := make(chan error, 1)
	go func() {
		for {
			frames, err := t.poll(pollCtx)
			if err != nil {
				pollErr <- err
				return
			}
			for _, f := range frames {
				in(f)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			t.close()
			return ctx.Err()
		case err := <-pollErr:
			return err
		case f := <-out:
			batch := []relay.Frame{f}
		drain:
			for len(batch) < submitBatch {
				select {
				case next := <-out:
					batch = append(batch, next)
				default:
					break drain
				}
			}
			if err := t.submit(ctx, batch); err != nil {
				return err
			}
		}
	}
}

func (t *pollTransport) do(ctx context.Context, method string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setAuth(req, t.token)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, ErrSessionLost
	}
	if resp.StatusCode/100 != 2 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%s poll: status %s", method, resp.Status)
	}
	return resp, nil
}

func (t *pollTransport) poll(ctx context.Context) ([]relay.Frame, error) {
	resp, err := t.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var frames []relay.Frame
	if err := json.NewDecoder(resp.Body).Decode(&frames); err != nil {
		return nil, fmt.Errorf("decode poll: %w", err)
	}
	return frames, nil
}

func (t *pollTransport) submit(ctx context.Context, frames []relay.Frame) error {
	body, err := json.Marshal(frames)
	if err != nil {
		return err
	}
	resp, err := t.do(ctx, http.MethodPost, body)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (t *pollTransport) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if resp, err := t.do(ctx, http.MethodDelete, nil); err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
