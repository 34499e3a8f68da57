package delta

import (
	"errors"
	"strings"
	"sync"
)

// ErrNotDocument insert 이외의 연산이 섞인 문서
var ErrNotDocument = errors.New("delta is not a document")

// Buffer 헤드리스 에디터 내용. 빈 문서는 개행 하나(길이 1)다.
type Buffer struct {
	mu  sync.RWMutex
	doc Delta
}

// NewBuffer 빈 문서로 시작
func NewBuffer() *Buffer {
	return &Buffer{doc: emptyDocument()}
}

func emptyDocument() Delta {
	return Delta{Ops: []Op{{InsertText: "\n"}}}
}

// SetContents 전체 교체. 끝에 개행이 없으면 붙인다.
func (b *Buffer) SetContents(doc Delta) error {
	if !doc.IsDocument() {
		return ErrNotDocument
	}

	next := New()
	for _, op := range doc.Ops {
		next.push(op)
	}
	if n := len(next.Ops); n == 0 || !strings.HasSuffix(next.Ops[n-1].InsertText, "\n") {
		next.Insert("\n", nil)
	}

	b.mu.Lock()
	b.doc = *next
	b.mu.Unlock()
	return nil
}

// Apply 변경 적용. 문서 끝을 넘는 retain/delete는 마지막 개행 앞까지로 잘라
// 뒤따르는 insert가 문서 끝에 들어가게 한다.
func (b *Buffer) Apply(change Delta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if length := b.doc.Length(); change.BaseLength() > length {
		change = clamp(change, length-1)
	}
	next := b.doc.Compose(change)
	if n := len(next.Ops); n == 0 || !strings.HasSuffix(next.Ops[n-1].InsertText, "\n") {
		next.Insert("\n", nil)
	}
	b.doc = next
}

// clamp retain/delete 합이 limit를 넘지 않도록 자른다. insert는 그대로 둔다.
func clamp(change Delta, limit int) Delta {
	out := New()
	pos := 0
	for _, op := range change.Ops {
		if op.IsInsert() {
			out.push(op)
			continue
		}
		n := min(op.Len(), limit-pos)
		if n <= 0 {
			continue
		}
		pos += n
		if op.IsDelete() {
			out.push(Op{Delete: n})
		} else {
			out.push(Op{Retain: n, Attributes: op.Attributes})
		}
	}
	return *out
}

// Contents 현재 문서 복사본
func (b *Buffer) Contents() Delta {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ops := make([]Op, len(b.doc.Ops))
	copy(ops, b.doc.Ops)
	return Delta{Ops: ops}
}

// Length 문서 길이
func (b *Buffer) Length() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.doc.Length()
}

// Text 평문
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.doc.Text()
}
