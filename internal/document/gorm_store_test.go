package document

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/database/dbtest"
	"collab-backend/internal/model"
)

func TestFetchNormalizesEachKind(t *testing.T) {
	db := dbtest.Open(t)
	seed := dbtest.SeedTree(t, db)
	store := NewGormStore(db)
	ctx := context.Background()

	ws, err := store.Fetch(ctx, model.KindWorkspace, seed.Workspace.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KindWorkspace, ws.Kind)
	assert.Equal(t, seed.Owner.ID, ws.OwnerID)
	assert.Equal(t, seed.Workspace.ID, ws.WorkspaceID)

	folder, err := store.Fetch(ctx, model.KindFolder, seed.Folder.ID)
	require.NoError(t, err)
	assert.Equal(t, seed.Workspace.ID, folder.WorkspaceID)

	file, err := store.Fetch(ctx, model.KindFile, seed.File.ID)
	require.NoError(t, err)
	assert.Equal(t, seed.Folder.ID, file.FolderID)
	assert.Equal(t, "File", file.Title)
	assert.Empty(t, file.Data)
}

func TestFetchErrors(t *testing.T) {
	store := NewGormStore(dbtest.Open(t))
	ctx := context.Background()

	_, err := store.Fetch(ctx, model.KindFile, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Fetch(ctx, model.KindFile, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = store.Fetch(ctx, model.DocumentKind("page"), uuid.NewString())
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestUpdatePartialReturnsCanonicalRow(t *testing.T) {
	db := dbtest.Open(t)
	seed := dbtest.SeedTree(t, db)
	store := NewGormStore(db)
	ctx := context.Background()

	data := `{"ops":[{"insert":"hello\n"}]}`
	doc, err := store.Update(ctx, model.KindFile, seed.File.ID, Update{Data: &data})
	require.NoError(t, err)
	assert.Equal(t, data, doc.Data)
	assert.Equal(t, "File", doc.Title, "untouched fields keep their values")

	title := "Renamed"
	doc, err = store.Update(ctx, model.KindFile, seed.File.ID, Update{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", doc.Title)
	assert.Equal(t, data, doc.Data)

	_, err = store.Update(ctx, model.KindFile, seed.File.ID, Update{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = store.Update(ctx, model.KindFile, uuid.NewString(), Update{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrashAndRestore(t *testing.T) {
	db := dbtest.Open(t)
	seed := dbtest.SeedTree(t, db)
	store := NewGormStore(db)
	ctx := context.Background()

	doc, err := store.Trash(ctx, model.KindFolder, seed.Folder.ID, "Deleted by owner@example.com")
	require.NoError(t, err)
	assert.True(t, doc.Trashed())
	assert.Equal(t, "Deleted by owner@example.com", doc.InTrash)

	trashed, err := store.ListTrashed(ctx, model.KindFolder)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.Equal(t, seed.Folder.ID, trashed[0].ID)

	doc, err = store.Restore(ctx, model.KindFolder, seed.Folder.ID)
	require.NoError(t, err)
	assert.False(t, doc.Trashed())

	trashed, err = store.ListTrashed(ctx, model.KindFolder)
	require.NoError(t, err)
	assert.Empty(t, trashed)
}

func TestCreateChecksParents(t *testing.T) {
	db := dbtest.Open(t)
	seed := dbtest.SeedTree(t, db)
	store := NewGormStore(db)
	ctx := context.Background()

	file, err := store.Create(ctx, NewDocument{Kind: model.KindFile, FolderID: seed.Folder.ID, Title: "Untitled", IconID: "📄"})
	require.NoError(t, err)
	assert.True(t, ValidID(file.ID))
	assert.Equal(t, seed.Workspace.ID, file.WorkspaceID)

	_, err = store.Create(ctx, NewDocument{Kind: model.KindFile, FolderID: uuid.NewString(), Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Create(ctx, NewDocument{Kind: model.KindFolder, Title: "x"})
	assert.ErrorIs(t, err, ErrParentNeeded)

	ws, err := store.Create(ctx, NewDocument{Kind: model.KindWorkspace, OwnerID: seed.Owner.ID, Title: "Second"})
	require.NoError(t, err)
	assert.Equal(t, seed.Owner.ID, ws.OwnerID)
}

func TestDeleteCascades(t *testing.T) {
	db := dbtest.Open(t)
	seed := dbtest.SeedTree(t, db)
	store := NewGormStore(db)
	ctx := context.Background()

	removed, err := store.Delete(ctx, model.KindWorkspace, seed.Workspace.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Ref{
		{Kind: model.KindFile, ID: seed.File.ID},
		{Kind: model.KindFolder, ID: seed.Folder.ID},
		{Kind: model.KindWorkspace, ID: seed.Workspace.ID},
	}, removed)

	_, err = store.Fetch(ctx, model.KindFile, seed.File.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Fetch(ctx, model.KindFolder, seed.Folder.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Delete(ctx, model.KindWorkspace, seed.Workspace.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFolderKeepsSiblings(t *testing.T) {
	db := dbtest.Open(t)
	seed := dbtest.SeedTree(t, db)
	store := NewGormStore(db)
	ctx := context.Background()

	other, err := store.Create(ctx, NewDocument{Kind: model.KindFolder, WorkspaceID: seed.Workspace.ID, Title: "Other"})
	require.NoError(t, err)

	removed, err := store.Delete(ctx, model.KindFolder, seed.Folder.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	_, err = store.Fetch(ctx, model.KindFolder, other.ID)
	assert.NoError(t, err)
	_, err = store.Fetch(ctx, model.KindWorkspace, seed.Workspace.ID)
	assert.NoError(t, err)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(uuid.NewString()))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("dashboard"))
	assert.False(t, ValidID("{"+uuid.NewString()+"}"))
}
