package datasheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var a1 = regexp.MustCompile(`^\s*([a-zA-Z]+)([0-9]+)\s*$`)

// ColumnName returns the A1 column letters for a zero-based column index e.g. 0 -> A, 26 -> AA.
func ColumnName(col int) string {
	if col < 0 {
		return ""
	}

	name := []byte{}
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		name = append([]byte{byte('A' + (n-1)%26)}, name...)
	}

	return string(name)
}

// ToA1 formats zero-based sheet coordinates as an A1 cell reference e.g. (1,1) -> B2.
func ToA1(row, col int) string {
	return fmt.Sprintf("%s%d", ColumnName(col), row+1)
}

// ParseA1 is the inverse of ToA1.
func ParseA1(ref string) (int, int, error) {
	match := a1.FindStringSubmatch(ref)
	if len(match) < 3 {
		return 0, 0, fmt.Errorf("invalid A1 cell reference '%s'", ref)
	}

	col := 0
	for _, c := range strings.ToUpper(match[1]) {
		col = col*26 + int(c-'A') + 1
	}

	row, err := strconv.Atoi(match[2])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid A1 cell reference '%s'", ref)
	}

	return row - 1, col - 1, nil
}

// qualify prefixes a worksheet relative range with the quoted worksheet title.
func qualify(title, ref string) string {
	if title == "" {
		return ref
	}

	return fmt.Sprintf("%s!%s", quote(title), ref)
}

func quote(title string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(title, "'", "''"))
}
