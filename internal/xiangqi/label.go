package xiangqi

import (
	"strconv"

	"golang.org/x/text/width"
)

var columnNumerals = [Cols]string{"一", "二", "三", "四", "五", "六", "七", "八", "九"}

// HumanLabel 中文坐标：列用一..九，行用全角１..１０
func (c Coordinate) HumanLabel() string {
	if !c.Valid() {
		return "?"
	}
	return columnNumerals[c.Col] + width.Widen.String(strconv.Itoa(c.Row+1))
}

// String ICCS 记法：列 a..i，行从红方底线 0 数起
func (c Coordinate) String() string {
	if !c.Valid() {
		return "??"
	}
	return string(rune('a'+c.Col)) + strconv.Itoa(Rows-1-c.Row)
}

// ParseCoordinate 解析 ICCS 记法，如 "h2"
func ParseCoordinate(s string) (Coordinate, bool) {
	if len(s) != 2 {
		return Coordinate{}, false
	}
	col := int(s[0] - 'a')
	rank := int(s[1] - '0')
	c := Coordinate{Row: Rows - 1 - rank, Col: col}
	return c, c.Valid()
}

// ParseMove 解析 "h2e2" 这种四字符走法
func ParseMove(s string) (Move, bool) {
	if len(s) != 4 {
		return Move{}, false
	}
	from, ok1 := ParseCoordinate(s[:2])
	to, ok2 := ParseCoordinate(s[2:])
	if !ok1 || !ok2 {
		return Move{}, false
	}
	return NewMove(from, to), true
}
