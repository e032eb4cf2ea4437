package extract

import "time"

// minTimestampLen is len("2006-01-02 15:04:05").
const minTimestampLen = 19

// ParseTimestampPrefix parses a timestamp at the very start of line in the
// form YYYY-MM-DD HH:MM:SS with optional fractional seconds. The date
// separator may be '-' or '/', the date/time separator ' ' or 'T'. Fields
// are read directly without time.Parse. Out of range fields, including
// days past the end of the month, are rejected.
func ParseTimestampPrefix(line string, loc *time.Location) (time.Time, bool) {
	if len(line) < minTimestampLen {
		return time.Time{}, false
	}

	dateSep := line[4]
	if dateSep != '-' && dateSep != '/' {
		return time.Time{}, false
	}
	if line[7] != '-' && line[7] != '/' {
		return time.Time{}, false
	}
	if line[10] != ' ' && line[10] != 'T' {
		return time.Time{}, false
	}
	if line[13] != ':' || line[16] != ':' {
		return time.Time{}, false
	}

	year := parseInt4(line[0:4])
	month := parseInt2(line[5:7])
	day := parseInt2(line[8:10])
	hour := parseInt2(line[11:13])
	min := parseInt2(line[14:16])
	sec := parseInt2(line[17:19])

	if year < 0 || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return time.Time{}, false
	}

	var nsec int
	if len(line) > minTimestampLen+1 && line[19] == '.' {
		end := 20
		for end < len(line) && line[end] >= '0' && line[end] <= '9' {
			end++
		}
		fracLen := end - 20
		if fracLen > 0 {
			if fracLen > 9 {
				fracLen = 9
			}
			nsec = parseIntN(line[20:20+fracLen], fracLen)
			for i := fracLen; i < 9; i++ {
				nsec *= 10
			}
		}
	}

	if loc == nil {
		loc = time.UTC
	}
	ts := time.Date(year, time.Month(month), day, hour, min, sec, nsec, loc)
	if ts.Day() != day {
		// time.Date normalized an impossible date such as Feb 30.
		return time.Time{}, false
	}
	return ts, true
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseInt4 parses a 4-digit decimal string. Returns -1 on error.
func parseInt4(s string) int {
	d1, d2, d3, d4 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	if d1 > 9 || d2 > 9 || d3 > 9 || d4 > 9 {
		return -1
	}
	return int(d1)*1000 + int(d2)*100 + int(d3)*10 + int(d4)
}

// parseIntN parses an n-digit decimal string of known digits.
func parseIntN(s string, n int) int {
	result := 0
	for i := 0; i < n; i++ {
		result = result*10 + int(s[i]-'0')
	}
	return result
}
