package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncCreatesPlaceholdersForOthersOnly(t *testing.T) {
	r := NewRoster()

	added, removed := r.Sync("doc1", "me", []Record{
		{ID: "me", Handle: "me"},
		{ID: "bob", Handle: "bob"},
		{ID: "ann", Handle: "ann"},
	})
	assert.Equal(t, []string{"ann", "bob"}, added)
	assert.Empty(t, removed)

	cursors := r.Cursors("doc1")
	require.Len(t, cursors, 2)
	assert.Equal(t, "ann", cursors[0].IdentityID)
	assert.Nil(t, cursors[0].Range)
	assert.Len(t, r.Records("doc1"), 3)
}

func TestSyncRemovesStalePlaceholders(t *testing.T) {
	r := NewRoster()
	r.Sync("doc1", "me", []Record{{ID: "me"}, {ID: "bob"}, {ID: "ann"}})

	added, removed := r.Sync("doc1", "me", []Record{{ID: "me"}, {ID: "ann"}})
	assert.Empty(t, added)
	assert.Equal(t, []string{"bob"}, removed)
	assert.False(t, r.MoveCursor("doc1", "bob", Range{Index: 1}))
}

func TestMoveCursorLastWriteWins(t *testing.T) {
	r := NewRoster()
	r.Sync("doc1", "me", []Record{{ID: "me"}, {ID: "bob"}})

	assert.False(t, r.MoveCursor("doc1", "stranger", Range{Index: 3}), "unknown identity is ignored")
	assert.False(t, r.MoveCursor("doc1", "me", Range{Index: 3}), "no placeholder for self")
	assert.False(t, r.MoveCursor("doc2", "bob", Range{Index: 3}), "scoped per document")

	assert.True(t, r.MoveCursor("doc1", "bob", Range{Index: 3, Length: 2}))
	assert.True(t, r.MoveCursor("doc1", "bob", Range{Index: 7}))

	cursors := r.Cursors("doc1")
	require.Len(t, cursors, 1)
	assert.Equal(t, &Range{Index: 7}, cursors[0].Range)
}

func TestDocumentsAreIndependent(t *testing.T) {
	r := NewRoster()
	r.Sync("doc1", "me", []Record{{ID: "me"}, {ID: "bob"}})
	r.Sync("doc2", "me", []Record{{ID: "me"}, {ID: "ann"}})

	assert.Len(t, r.Cursors("doc1"), 1)
	assert.Len(t, r.Cursors("doc2"), 1)

	r.Clear("doc1")
	assert.Empty(t, r.Cursors("doc1"))
	assert.Empty(t, r.Records("doc1"))
	assert.Len(t, r.Cursors("doc2"), 1)
}
