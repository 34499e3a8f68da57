package delta

import "strings"

func runeUnits(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

// substrUTF16 UTF-16 오프셋 기준 부분 문자열. 서로게이트 쌍 중간은 다음 룬까지 포함한다.
func substrUTF16(s string, offset, length int) string {
	var sb strings.Builder
	pos := 0
	end := offset + length
	for _, r := range s {
		if pos >= end {
			break
		}
		if pos >= offset {
			sb.WriteRune(r)
		}
		pos += runeUnits(r)
	}
	return sb.String()
}
