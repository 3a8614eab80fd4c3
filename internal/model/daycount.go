package model

import "fmt"

// DayCount renders a completion count with the Russian plural form of "day".
func DayCount(n int) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	word := "дней"
	if rem100 := abs % 100; rem100 < 11 || rem100 > 14 {
		switch abs % 10 {
		case 1:
			word = "день"
		case 2, 3, 4:
			word = "дня"
		}
	}
	return fmt.Sprintf("%d %s", n, word)
}
