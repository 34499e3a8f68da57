// Package apiclient 문서 REST API 클라이언트 (document.Store 구현)
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"collab-backend/internal/auth"
	"collab-backend/internal/document"
	"collab-backend/internal/model"
)

// StatusError 2xx가 아닌 응답
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.Code)
	}
	return fmt.Sprintf("api status %d: %s", e.Code, e.Message)
}

// Client 문서 API 클라이언트
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New Client 생성
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

var _ document.Store = (*Client)(nil)

func (c *Client) documentURL(kind model.DocumentKind, id string) string {
	return c.BaseURL + "/api/documents/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(id)
}

// do 요청 후 2xx면 out으로 디코딩. 404는 document.ErrNotFound.
func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return document.ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Fetch 문서 조회
func (c *Client) Fetch(ctx context.Context, kind model.DocumentKind, id string) (*document.Document, error) {
	if !document.ValidID(id) {
		return nil, document.ErrInvalidID
	}
	var doc document.Document
	if err := c.do(ctx, http.MethodGet, c.documentURL(kind, id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Update 부분 업데이트, 정규화된 행 반환
func (c *Client) Update(ctx context.Context, kind model.DocumentKind, id string, u document.Update) (*document.Document, error) {
	if !document.ValidID(id) {
		return nil, document.ErrInvalidID
	}
	if u.Empty() {
		return nil, document.ErrEmptyUpdate
	}
	var doc document.Document
	if err := c.do(ctx, http.MethodPatch, c.documentURL(kind, id), u, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Create 문서 생성
func (c *Client) Create(ctx context.Context, nd document.NewDocument) (*document.Document, error) {
	if !nd.Kind.IsValid() {
		return nil, document.ErrInvalidKind
	}
	var doc document.Document
	u := c.BaseURL + "/api/documents/" + url.PathEscape(string(nd.Kind))
	if err := c.do(ctx, http.MethodPost, u, nd, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Trash 휴지통으로 이동
func (c *Client) Trash(ctx context.Context, kind model.DocumentKind, id, note string) (*document.Document, error) {
	var doc document.Document
	if err := c.do(ctx, http.MethodPost, c.documentURL(kind, id)+"/trash", map[string]string{"note": note}, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Restore 휴지통에서 복원
func (c *Client) Restore(ctx context.Context, kind model.DocumentKind, id string) (*document.Document, error) {
	var doc document.Document
	if err := c.do(ctx, http.MethodPost, c.documentURL(kind, id)+"/restore", nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete 영구 삭제
func (c *Client) Delete(ctx context.Context, kind model.DocumentKind, id string) ([]document.Ref, error) {
	var resp struct {
		Deleted []document.Ref `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, c.documentURL(kind, id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deleted, nil
}

// Me 토큰 주인의 신원
func (c *Client) Me(ctx context.Context) (*auth.Identity, error) {
	var me struct {
		ID        string `json:"id"`
		Handle    string `json:"handle"`
		AvatarURL string `json:"avatarUrl"`
	}
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/auth/me", nil, &me); err != nil {
		return nil, err
	}
	return &auth.Identity{ID: me.ID, Handle: me.Handle, AvatarURL: me.AvatarURL}, nil
}
