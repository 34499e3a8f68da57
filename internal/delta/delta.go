// Package delta 리치 텍스트 변경(retain/insert/delete) 표현과 합성
//
// 길이와 인덱스는 브라우저 에디터와 맞추기 위해 UTF-16 코드 유닛 기준이다.
package delta

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ErrInvalidOp insert/retain/delete 중 정확히 하나가 아닌 연산
var ErrInvalidOp = errors.New("invalid delta op")

// Op 단일 연산. InsertText/InsertEmbed/Retain/Delete 중 하나만 설정된다.
type Op struct {
	InsertText  string
	InsertEmbed map[string]any
	Retain      int
	Delete      int
	Attributes  map[string]any
}

// IsInsert insert 연산인지
func (o Op) IsInsert() bool {
	return o.InsertText != "" || o.InsertEmbed != nil
}

// IsRetain retain 연산인지
func (o Op) IsRetain() bool {
	return o.Retain > 0
}

// IsDelete delete 연산인지
func (o Op) IsDelete() bool {
	return o.Delete > 0
}

// Len 연산 길이 (embed는 1)
func (o Op) Len() int {
	switch {
	case o.Delete > 0:
		return o.Delete
	case o.Retain > 0:
		return o.Retain
	case o.InsertEmbed != nil:
		return 1
	default:
		return utf16Len(o.InsertText)
	}
}

type opJSON struct {
	Insert     json.RawMessage `json:"insert,omitempty"`
	Retain     *int            `json:"retain,omitempty"`
	Delete     *int            `json:"delete,omitempty"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

// MarshalJSON Quill 호환 형식
func (o Op) MarshalJSON() ([]byte, error) {
	var j opJSON
	switch {
	case o.InsertEmbed != nil:
		b, err := json.Marshal(o.InsertEmbed)
		if err != nil {
			return nil, err
		}
		j.Insert = b
	case o.InsertText != "":
		b, err := json.Marshal(o.InsertText)
		if err != nil {
			return nil, err
		}
		j.Insert = b
	case o.Retain > 0:
		j.Retain = &o.Retain
	case o.Delete > 0:
		j.Delete = &o.Delete
	default:
		return nil, ErrInvalidOp
	}
	if len(o.Attributes) > 0 {
		j.Attributes = o.Attributes
	}
	return json.Marshal(j)
}

// UnmarshalJSON Quill 호환 형식
func (o *Op) UnmarshalJSON(data []byte) error {
	var j opJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	set := 0
	*o = Op{Attributes: j.Attributes}
	if len(j.Insert) > 0 {
		set++
		if j.Insert[0] == '"' {
			if err := json.Unmarshal(j.Insert, &o.InsertText); err != nil {
				return err
			}
			if o.InsertText == "" {
				return fmt.Errorf("%w: empty insert", ErrInvalidOp)
			}
		} else {
			if err := json.Unmarshal(j.Insert, &o.InsertEmbed); err != nil {
				return fmt.Errorf("%w: insert must be a string or object", ErrInvalidOp)
			}
		}
	}
	if j.Retain != nil {
		set++
		o.Retain = *j.Retain
		if o.Retain <= 0 {
			return fmt.Errorf("%w: retain must be positive", ErrInvalidOp)
		}
	}
	if j.Delete != nil {
		set++
		o.Delete = *j.Delete
		if o.Delete <= 0 {
			return fmt.Errorf("%w: delete must be positive", ErrInvalidOp)
		}
	}
	if set != 1 {
		return ErrInvalidOp
	}
	return nil
}

// Delta 연산 목록
type Delta struct {
	Ops []Op `json:"ops"`
}

// New 빈 Delta
func New() *Delta {
	return &Delta{Ops: []Op{}}
}

// Parse {"ops":[...]} 또는 [...] 형식 파싱
func Parse(data []byte) (Delta, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var ops []Op
		if err := json.Unmarshal(data, &ops); err != nil {
			return Delta{}, err
		}
		return Delta{Ops: ops}, nil
	}

	var d Delta
	if err := json.Unmarshal(data, &d); err != nil {
		return Delta{}, err
	}
	if d.Ops == nil {
		d.Ops = []Op{}
	}
	return d, nil
}

// Insert 텍스트 삽입 추가
func (d *Delta) Insert(text string, attrs map[string]any) *Delta {
	if text == "" {
		return d
	}
	return d.push(Op{InsertText: text, Attributes: attrs})
}

// InsertEmbed 임베드(이미지 등) 삽입 추가
func (d *Delta) InsertEmbed(embed map[string]any, attrs map[string]any) *Delta {
	return d.push(Op{InsertEmbed: embed, Attributes: attrs})
}

// Retain 유지 추가
func (d *Delta) Retain(n int, attrs map[string]any) *Delta {
	if n <= 0 {
		return d
	}
	return d.push(Op{Retain: n, Attributes: attrs})
}

// Delete 삭제 추가
func (d *Delta) Delete(n int) *Delta {
	if n <= 0 {
		return d
	}
	return d.push(Op{Delete: n})
}

// push 인접한 같은 종류 연산은 합친다. delete 뒤 insert는 delete 앞으로 옮긴다.
func (d *Delta) push(op Op) *Delta {
	if len(op.Attributes) == 0 {
		op.Attributes = nil
	}
	idx := len(d.Ops)
	if idx > 0 {
		last := d.Ops[idx-1]
		if op.IsDelete() && last.IsDelete() {
			d.Ops[idx-1] = Op{Delete: last.Delete + op.Delete}
			return d
		}
		if last.IsDelete() && op.IsInsert() {
			idx--
			if idx == 0 {
				d.Ops = append([]Op{op}, d.Ops...)
				return d
			}
			last = d.Ops[idx-1]
		}
		if reflect.DeepEqual(op.Attributes, last.Attributes) {
			if op.InsertText != "" && last.InsertText != "" {
				d.Ops[idx-1] = Op{InsertText: last.InsertText + op.InsertText, Attributes: op.Attributes}
				return d
			}
			if op.IsRetain() && last.IsRetain() {
				d.Ops[idx-1] = Op{Retain: last.Retain + op.Retain, Attributes: op.Attributes}
				return d
			}
		}
	}
	if idx == len(d.Ops) {
		d.Ops = append(d.Ops, op)
	} else {
		d.Ops = append(d.Ops[:idx], append([]Op{op}, d.Ops[idx:]...)...)
	}
	return d
}

// chop 끝의 속성 없는 retain 제거
func (d *Delta) chop() *Delta {
	if n := len(d.Ops); n > 0 {
		last := d.Ops[n-1]
		if last.IsRetain() && last.Attributes == nil {
			d.Ops = d.Ops[:n-1]
		}
	}
	return d
}

// Length 전체 길이
func (d Delta) Length() int {
	n := 0
	for _, op := range d.Ops {
		n += op.Len()
	}
	return n
}

// BaseLength 변경이 적용되려면 필요한 문서 길이 (retain + delete)
func (d Delta) BaseLength() int {
	n := 0
	for _, op := range d.Ops {
		if op.IsRetain() || op.IsDelete() {
			n += op.Len()
		}
	}
	return n
}

// IsDocument insert로만 이루어졌는지
func (d Delta) IsDocument() bool {
	for _, op := range d.Ops {
		if !op.IsInsert() {
			return false
		}
	}
	return true
}

// Text 텍스트 insert만 이어붙인 평문
func (d Delta) Text() string {
	var sb strings.Builder
	for _, op := range d.Ops {
		sb.WriteString(op.InsertText)
	}
	return sb.String()
}

// JSON {"ops":[...]} 직렬화
func (d Delta) JSON() (string, error) {
	if d.Ops == nil {
		d.Ops = []Op{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compose d 다음에 other를 적용한 결과
func (d Delta) Compose(other Delta) Delta {
	a := newIterator(d.Ops)
	b := newIterator(other.Ops)
	out := New()

	for a.hasNext() || b.hasNext() {
		switch {
		case b.peekType() == typeInsert:
			out.push(b.next(math.MaxInt))
		case a.peekType() == typeDelete:
			out.push(a.next(math.MaxInt))
		default:
			length := min(a.peekLength(), b.peekLength())
			aOp := a.next(length)
			bOp := b.next(length)
			if bOp.IsRetain() {
				var newOp Op
				if aOp.IsRetain() {
					newOp.Retain = length
				} else {
					newOp.InsertText = aOp.InsertText
					newOp.InsertEmbed = aOp.InsertEmbed
				}
				newOp.Attributes = composeAttributes(aOp.Attributes, bOp.Attributes, aOp.IsRetain())
				out.push(newOp)
			} else if bOp.IsDelete() && aOp.IsRetain() {
				out.push(bOp)
			}
			// aOp가 insert이고 bOp가 delete면 둘 다 사라진다
		}
	}
	return *out.chop()
}

// composeAttributes b가 a를 덮어쓴다. keepNull이 아니면 nil 값(속성 제거)은 지운다.
func composeAttributes(a, b map[string]any, keepNull bool) map[string]any {
	attrs := make(map[string]any, len(a)+len(b))
	for k, v := range b {
		if v == nil && !keepNull {
			continue
		}
		attrs[k] = v
	}
	for k, v := range a {
		if _, ok := b[k]; !ok && v != nil {
			attrs[k] = v
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

type opType int

const (
	typeRetain opType = iota
	typeInsert
	typeDelete
)

type iterator struct {
	ops    []Op
	index  int
	offset int
}

func newIterator(ops []Op) *iterator {
	return &iterator{ops: ops}
}

func (it *iterator) hasNext() bool {
	return it.peekLength() < math.MaxInt
}

func (it *iterator) peekLength() int {
	if it.index < len(it.ops) {
		return it.ops[it.index].Len() - it.offset
	}
	return math.MaxInt
}

func (it *iterator) peekType() opType {
	if it.index >= len(it.ops) {
		return typeRetain
	}
	op := it.ops[it.index]
	switch {
	case op.IsDelete():
		return typeDelete
	case op.IsRetain():
		return typeRetain
	default:
		return typeInsert
	}
}

// next 최대 length 만큼 잘라낸 연산. 끝에 도달하면 무한 retain.
func (it *iterator) next(length int) Op {
	if it.index >= len(it.ops) {
		return Op{Retain: math.MaxInt}
	}

	op := it.ops[it.index]
	offset := it.offset
	opLength := op.Len()
	if length >= opLength-offset {
		length = opLength - offset
		it.index++
		it.offset = 0
	} else {
		it.offset += length
	}

	switch {
	case op.IsDelete():
		return Op{Delete: length}
	case op.IsRetain():
		return Op{Retain: length, Attributes: op.Attributes}
	case op.InsertEmbed != nil:
		return Op{InsertEmbed: op.InsertEmbed, Attributes: op.Attributes}
	default:
		return Op{InsertText: substrUTF16(op.InsertText, offset, length), Attributes: op.Attributes}
	}
}
