package chrono

// scanInt reads exactly width characters of text starting at pos as a
// decimal integer. When signed is true a leading '+' or '-' is accepted and
// counts toward the width. It returns the value and the number of bytes
// consumed, which on success is always width.
func scanInt(text string, pos, width int, signed bool, field string) (int, int, error) {
	if width <= 0 {
		return 0, 0, newError(MalformedNumber, field, pos, "empty field width")
	}
	if pos+width > len(text) {
		return 0, 0, newError(TruncatedInput, field, pos, "want %d characters, have %d", width, max(len(text)-pos, 0))
	}

	i := pos
	end := pos + width
	neg := false
	if signed && (text[i] == '-' || text[i] == '+') {
		neg = text[i] == '-'
		i++
		if i == end {
			return 0, 0, newError(MalformedNumber, field, pos, "sign without digits")
		}
	}

	n := 0
	for ; i < end; i++ {
		c := text[i]
		if c < '0' || c > '9' {
			return 0, 0, newError(MalformedNumber, field, i, "unexpected %q", c)
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, width, nil
}

// scanDigits reads a run of 1..maxWidth decimal digits starting at pos and
// returns the value and the number of digits read.
func scanDigits(text string, pos, maxWidth int, field string) (int, int, error) {
	if pos >= len(text) {
		return 0, 0, newError(TruncatedInput, field, pos, "no digits")
	}
	n, i := 0, pos
	for i < len(text) && i-pos < maxWidth {
		c := text[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		i++
	}
	if i == pos {
		return 0, 0, newError(MalformedNumber, field, pos, "unexpected %q", text[pos])
	}
	return n, i - pos, nil
}
