package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(text string) Delta {
	return *New().Insert(text, nil)
}

func TestComposeInsert(t *testing.T) {
	got := doc("Hello\n").Compose(*New().Retain(5, nil).Insert(" world", nil))

	assert.Equal(t, []Op{{InsertText: "Hello world\n"}}, got.Ops)
	assert.Equal(t, 12, got.Length())
}

func TestComposeDelete(t *testing.T) {
	got := doc("Hello world\n").Compose(*New().Retain(5, nil).Delete(6))
	assert.Equal(t, "Hello\n", got.Text())
}

func TestComposeAttributes(t *testing.T) {
	bold := map[string]any{"bold": true}
	got := doc("abc\n").Compose(*New().Retain(1, nil).Retain(1, bold))

	require.Len(t, got.Ops, 3)
	assert.Equal(t, Op{InsertText: "a"}, got.Ops[0])
	assert.Equal(t, Op{InsertText: "b", Attributes: bold}, got.Ops[1])
	assert.Equal(t, Op{InsertText: "c\n"}, got.Ops[2])

	unbold := got.Compose(*New().Retain(1, nil).Retain(1, map[string]any{"bold": nil}))
	assert.Equal(t, []Op{{InsertText: "abc\n"}}, unbold.Ops)
}

func TestPushMovesInsertBeforeDelete(t *testing.T) {
	d := New().Retain(1, nil).Delete(2).Insert("x", nil)
	assert.Equal(t, []Op{{Retain: 1}, {InsertText: "x"}, {Delete: 2}}, d.Ops)

	d = New().Delete(1).Delete(2)
	assert.Equal(t, []Op{{Delete: 3}}, d.Ops)
}

func TestParseAndJSON(t *testing.T) {
	d, err := Parse([]byte(`{"ops":[{"insert":"Hi"},{"insert":{"image":"x.png"}},{"insert":"\n","attributes":{"header":1}}]}`))
	require.NoError(t, err)

	assert.Equal(t, 4, d.Length())
	assert.True(t, d.IsDocument())
	assert.Equal(t, "x.png", d.Ops[1].InsertEmbed["image"])

	s, err := d.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ops":[{"insert":"Hi"},{"insert":{"image":"x.png"}},{"insert":"\n","attributes":{"header":1}}]}`, s)

	bare, err := Parse([]byte(`[{"retain":3},{"delete":1}]`))
	require.NoError(t, err)
	assert.Equal(t, 4, bare.BaseLength())
	assert.False(t, bare.IsDocument())
}

func TestParseRejectsInvalidOps(t *testing.T) {
	for _, raw := range []string{
		`{"ops":[{"retain":1,"delete":1}]}`,
		`{"ops":[{"retain":0}]}`,
		`{"ops":[{"insert":""}]}`,
		`{"ops":[{}]}`,
	} {
		_, err := Parse([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidOp, raw)
	}
}

func TestEmptyDeltaSerializesOps(t *testing.T) {
	s, err := Delta{}.JSON()
	require.NoError(t, err)
	assert.Equal(t, `{"ops":[]}`, s)
}

func TestUTF16Lengths(t *testing.T) {
	d := doc("😀a\n")
	assert.Equal(t, 4, d.Length())

	got := d.Compose(*New().Retain(2, nil).Insert("b", nil))
	assert.Equal(t, "😀ba\n", got.Text())
}

func TestBufferClampsChangesPastTheEnd(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.SetContents(doc("hello world")))

	// 로컬에서 "world" 삭제 후, 원래 길이 기준으로 만든 동시 변경 도착
	b.Apply(*New().Retain(6, nil).Delete(5))
	assert.Equal(t, "hello \n", b.Text())

	b.Apply(*New().Retain(11, nil).Insert("!", nil))
	assert.Equal(t, "hello !\n", b.Text())

	b.Apply(*New().Retain(3, nil).Delete(40).Insert("p", nil))
	assert.Equal(t, "help\n", b.Text())
}

func TestBufferKeepsTrailingNewline(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.SetContents(doc("abc")))

	b.Apply(*New().Retain(3, nil).Delete(1))
	assert.Equal(t, "abc\n", b.Text())
}

func TestBuffer(t *testing.T) {
	b := NewBuffer()
	assert.Equal(t, 1, b.Length())
	assert.Equal(t, "\n", b.Text())

	b.Apply(*New().Insert("ab", nil))
	assert.Equal(t, "ab\n", b.Text())

	b.Apply(*New().Delete(3))
	assert.Equal(t, 1, b.Length(), "deleting everything leaves the empty document")

	require.NoError(t, b.SetContents(doc("loaded")))
	assert.Equal(t, "loaded\n", b.Text())

	assert.ErrorIs(t, b.SetContents(*New().Retain(1, nil)), ErrNotDocument)

	snapshot := b.Contents()
	snapshot.Ops[0].InsertText = "mutated"
	assert.Equal(t, "loaded\n", b.Text())
}
