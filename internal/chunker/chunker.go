// Package chunker splits serialized JSON documents into bounded,
// structurally safe segments.
package chunker

// DefaultMaxLen is the default maximum segment length in bytes.
// Sized so a prompt plus one segment stays well inside model context limits.
const DefaultMaxLen = 3000

// Split cuts serialized into ordered segments of roughly maxLen bytes.
// Concatenating the segments in order reproduces the input exactly. A cut
// is only made when the scanner is outside a quoted string and the
// {}/[] nesting depth is zero, so every segment is either self-contained
// JSON or a safely concatenable fragment. A single value longer than
// maxLen is never split mid-value; the segment grows until depth returns
// to zero.
func Split(serialized string, maxLen int) []string {
	if serialized == "" {
		return nil
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	var segments []string
	var buf []byte
	depth := 0
	inString := false

	for i := 0; i < len(serialized); i++ {
		ch := serialized[i]
		buf = append(buf, ch)

		switch ch {
		case '\\':
			if inString && i+1 < len(serialized) {
				// Consume the escaped character so \" does not toggle the flag.
				i++
				buf = append(buf, serialized[i])
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}

		if len(buf) >= maxLen && depth == 0 && !inString {
			segments = append(segments, string(buf))
			buf = buf[:0]
		}
	}

	if len(buf) > 0 {
		segments = append(segments, string(buf))
	}

	return segments
}
