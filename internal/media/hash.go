package media

import (
	"strconv"
	"unicode/utf16"
)

// EventHash derives the stable listing key of an event from its date and title.
//
// It is the 31-multiplier string hash over UTF-16 code units with 32-bit wraparound,
// so keys match the ones the public site has been publishing in event URLs.
func EventHash(date, title string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(date + title)) {
		h = (h << 5) - h + int32(c)
	}
	return strconv.FormatInt(int64(h), 10)
}
