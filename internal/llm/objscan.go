package llm

// objectScanner recovers complete top-level JSON objects from a byte stream
// that may split anywhere, including mid-object and mid-string. Gemini streams
// a JSON array of objects but flushes it in arbitrary fragments, so the
// scanner ignores everything outside braces (brackets, commas, whitespace) and
// tracks only object boundaries, honoring string literals and escapes.
//
// Scanner state persists across Feed calls, so a fragment ending inside a
// string or between escape characters resumes correctly on the next call.
type objectScanner struct {
	buf      []byte
	pos      int // next byte to examine
	start    int // offset of the opening brace of the current object
	depth    int
	inString bool
	escaped  bool
}

// Feed appends p to the internal buffer and returns every complete top-level
// object found so far, in input order. Returned slices are copies; the buffer
// is compacted after each extraction.
func (s *objectScanner) Feed(p []byte) [][]byte {
	s.buf = append(s.buf, p...)

	var objects [][]byte
	for ; s.pos < len(s.buf); s.pos++ {
		c := s.buf[s.pos]

		if s.escaped {
			s.escaped = false
			continue
		}
		if s.inString {
			switch c {
			case '\\':
				s.escaped = true
			case '"':
				s.inString = false
			}
			continue
		}

		switch c {
		case '"':
			// A quote outside an object can only be array punctuation noise;
			// track it anyway so unbalanced input cannot confuse the depth.
			s.inString = true
		case '{':
			if s.depth == 0 {
				s.start = s.pos
			}
			s.depth++
		case '}':
			if s.depth == 0 {
				continue
			}
			s.depth--
			if s.depth == 0 {
				obj := make([]byte, s.pos+1-s.start)
				copy(obj, s.buf[s.start:s.pos+1])
				objects = append(objects, obj)

				s.buf = s.buf[s.pos+1:]
				s.pos = -1 // loop increment moves to 0
				s.start = 0
			}
		}
	}
	return objects
}
