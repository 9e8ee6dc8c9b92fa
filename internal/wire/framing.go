package wire

import (
	"bytes"
	"encoding/json"
)

// structuralLookahead is how far candidateStart looks past a bare '{' for
// confirming structural JSON bytes (§4.2 step 1).
const structuralLookahead = 100

// requiredKeys are the header fields whose presence confirms a parsed
// object is a real frame header rather than coincidental JSON-shaped
// noise (§4.2 step 2).
var requiredKeys = []string{"width", "height", "frameNumber", "timeAtFrame", "binSize", "binWidth"}

// candidateStart locates the offset within line of a plausible JSON
// object start, or -1 if none is found. It prefers the literal `{"`
// sequence; failing that, it scans for any `{` whose lookahead window
// contains a structural JSON byte or a long alphanumeric run, per §4.2
// step 1.
func candidateStart(line []byte) int {
	if i := bytes.Index(line, []byte(`{"`)); i >= 0 {
		return i
	}

	for i := 0; i < len(line); i++ {
		if line[i] != '{' {
			continue
		}
		end := i + 1 + structuralLookahead
		if end > len(line) {
			end = len(line)
		}
		if hasStructuralConfirmation(line[i+1 : end]) {
			return i
		}
	}
	return -1
}

// hasStructuralConfirmation implements the lookahead test: a structural
// JSON byte anywhere in the window, or a run of at least 6 alphanumeric/
// `_-. ` characters uninterrupted by a control byte outside \t\r\n.
func hasStructuralConfirmation(window []byte) bool {
	run := 0
	for _, b := range window {
		switch b {
		case '"', ':', ',', '}', '[', ']':
			return true
		case '\t', '\r', '\n':
			run = 0
			continue
		}
		if isWordByte(b) {
			run++
			if run >= 6 {
				return true
			}
			continue
		}
		if b < 0x20 {
			run = 0
			continue
		}
		run = 0
	}
	return false
}

func isWordByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '-' || b == '.' || b == ' ':
		return true
	default:
		return false
	}
}

// acceptHeader attempts to parse candidate as a JSON object and checks
// that at least one of requiredKeys is present (§4.2 step 2).
func acceptHeader(candidate []byte) ([]byte, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(candidate, &obj); err != nil {
		return nil, false
	}
	for _, k := range requiredKeys {
		if _, ok := obj[k]; ok {
			return candidate, true
		}
	}
	return nil, false
}
