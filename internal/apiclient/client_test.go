package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/document"
	"collab-backend/internal/model"
)

func TestFetchSendsBearerAndDecodes(t *testing.T) {
	id := uuid.NewString()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/documents/file/"+id, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(document.Document{ID: id, Kind: model.KindFile, Title: "Notes", Data: `{"ops":[]}`})
	}))
	defer srv.Close()

	doc, err := New(srv.URL+"/", "tok").Fetch(context.Background(), model.KindFile, id)
	require.NoError(t, err)
	assert.Equal(t, "Notes", doc.Title)
	assert.Equal(t, model.KindFile, doc.Kind)
}

func TestFetchMapsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"document not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Fetch(context.Background(), model.KindFile, uuid.NewString())
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestFetchRejectsInvalidIDLocally(t *testing.T) {
	c := New("http://127.0.0.1:1", "")
	_, err := c.Fetch(context.Background(), model.KindFile, "nope")
	assert.ErrorIs(t, err, document.ErrInvalidID)
}

func TestUpdateSendsOnlySetFields(t *testing.T) {
	id := uuid.NewString()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"data": `{"ops":[{"insert":"x\n"}]}`}, body)
		json.NewEncoder(w).Encode(document.Document{ID: id, Kind: model.KindFile, Data: body["data"].(string)})
	}))
	defer srv.Close()

	data := `{"ops":[{"insert":"x\n"}]}`
	doc, err := New(srv.URL, "tok").Update(context.Background(), model.KindFile, id, document.Update{Data: &data})
	require.NoError(t, err)
	assert.Equal(t, data, doc.Data)

	_, err = New(srv.URL, "tok").Update(context.Background(), model.KindFile, id, document.Update{})
	assert.ErrorIs(t, err, document.ErrEmptyUpdate)
}

func TestStatusErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"access denied"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").Fetch(context.Background(), model.KindFile, uuid.NewString())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, "api status 403: access denied", se.Error())
}

func TestDeleteReturnsRefs(t *testing.T) {
	id := uuid.NewString()
	child := uuid.NewString()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(map[string]any{"deleted": []document.Ref{
			{Kind: model.KindFile, ID: child},
			{Kind: model.KindFolder, ID: id},
		}})
	}))
	defer srv.Close()

	refs, err := New(srv.URL, "tok").Delete(context.Background(), model.KindFolder, id)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	assert.Equal(t, child, refs[0].ID)
}

func TestMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me", r.URL.Path)
		w.Write([]byte(`{"id":"u1","email":"a@b.c","handle":"a","avatarUrl":"http://img"}`))
	}))
	defer srv.Close()

	me, err := New(srv.URL, "tok").Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)
	assert.Equal(t, "a", me.Handle)
	assert.Equal(t, "http://img", me.AvatarURL)
}
