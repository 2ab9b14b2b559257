// Package extract pulls a single string field out of a JSON document while
// the document is still being streamed, emitting the decoded value one rune
// at a time. The input may be split anywhere, including inside escapes,
// surrogate pairs and multi-byte UTF-8 sequences.
//
// It is not a JSON parser: it scans for the literal "key" followed by a
// colon and a string (or null) and ignores all other structure.
package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// State is the scanner position relative to the target field.
type State int

const (
	StateSearchingKey State = iota
	StateAfterKey
	StateWaitingValue
	StateInValue
	StateDone
	StateNullValue
)

func (s State) String() string {
	switch s {
	case StateSearchingKey:
		return "searching_key"
	case StateAfterKey:
		return "after_key"
	case StateWaitingValue:
		return "waiting_value"
	case StateInValue:
		return "in_value"
	case StateDone:
		return "done"
	case StateNullValue:
		return "null_value"
	default:
		return "unknown"
	}
}

const (
	surrHighMin = 0xD800
	surrHighMax = 0xDBFF
	surrLowMin  = 0xDC00
	surrLowMax  = 0xDFFF
)

// Extractor is a character-driven state machine. It is not safe for
// concurrent use; one Extractor serves one streamed document.
type Extractor struct {
	key  []rune // quoted key literal, e.g. "result" with quotes
	sink func(rune)

	state    State
	keyIndex int

	escapeNext  bool
	inUnicode   bool
	unicodeBuf  []byte
	pendingHigh rune // 0 when none

	partial []byte // incomplete trailing UTF-8 sequence from the last Feed
	value   strings.Builder

	finalized bool
}

// New creates an Extractor looking for the string value of key. sink
// receives each decoded rune as soon as it is known; it may be nil.
func New(key string, sink func(rune)) *Extractor {
	return &Extractor{
		key:        []rune(`"` + key + `"`),
		sink:       sink,
		unicodeBuf: make([]byte, 0, 4),
	}
}

// Feed consumes the next chunk of raw model output.
func (e *Extractor) Feed(chunk string) {
	if e.finalized || e.terminal() {
		return
	}

	data := chunk
	if len(e.partial) > 0 {
		data = string(e.partial) + chunk
		e.partial = e.partial[:0]
	}

	for len(data) > 0 {
		if e.terminal() {
			return
		}
		r, size := utf8.DecodeRuneInString(data)
		if r == utf8.RuneError && size <= 1 && !utf8.FullRuneInString(data) {
			e.partial = append(e.partial, data...)
			return
		}
		data = data[size:]
		e.handle(r)
	}
}

// Finalize flushes state at end of stream. Only the first call has effect.
func (e *Extractor) Finalize() {
	if e.finalized {
		return
	}
	e.finalized = true

	if len(e.partial) > 0 {
		// Truncated UTF-8 at end of input.
		if e.state == StateInValue && !e.inUnicode && !e.escapeNext {
			e.emit(unicode.ReplacementChar)
		}
		e.partial = nil
	}
	e.flushPending()
}

// Value returns everything emitted so far.
func (e *Extractor) Value() string {
	return e.value.String()
}

// HasValue reports whether at least one rune has been emitted.
func (e *Extractor) HasValue() bool {
	return e.value.Len() > 0
}

// State returns the current scanner state.
func (e *Extractor) State() State {
	return e.state
}

func (e *Extractor) terminal() bool {
	return e.state == StateDone || e.state == StateNullValue
}

func (e *Extractor) handle(r rune) {
	if e.terminal() {
		return
	}

	if e.inUnicode {
		if isHex(r) {
			e.unicodeBuf = append(e.unicodeBuf, byte(r))
			if len(e.unicodeBuf) == 4 {
				e.inUnicode = false
				e.emitCodeUnit(parseHex4(e.unicodeBuf))
				e.unicodeBuf = e.unicodeBuf[:0]
			}
			return
		}
		// Malformed \u sequence: drop it and treat r as ordinary input.
		e.inUnicode = false
		e.unicodeBuf = e.unicodeBuf[:0]
	}

	if e.escapeNext {
		e.escapeNext = false
		e.handleEscape(r)
		return
	}

	switch e.state {
	case StateSearchingKey:
		if r == e.key[e.keyIndex] {
			e.keyIndex++
			if e.keyIndex == len(e.key) {
				e.state = StateAfterKey
				e.keyIndex = 0
			}
			return
		}
		if r == e.key[0] {
			e.keyIndex = 1
		} else {
			e.keyIndex = 0
		}

	case StateAfterKey:
		switch {
		case r == ':':
			e.state = StateWaitingValue
		case !unicode.IsSpace(r):
			e.restart(r)
		}

	case StateWaitingValue:
		switch {
		case r == '"':
			e.state = StateInValue
		case r == 'n':
			e.state = StateNullValue
		case !unicode.IsSpace(r):
			e.restart(r)
		}

	case StateInValue:
		switch r {
		case '\\':
			e.escapeNext = true
		case '"':
			e.flushPending()
			e.state = StateDone
		default:
			e.emit(r)
		}
	}
}

// restart returns to key search and re-processes r as a key character.
func (e *Extractor) restart(r rune) {
	e.state = StateSearchingKey
	e.keyIndex = 0
	e.handle(r)
}

func (e *Extractor) handleEscape(r rune) {
	switch r {
	case '"', '\\', '/':
		e.emit(r)
	case 'b':
		e.emit('\b')
	case 'f':
		e.emit('\f')
	case 'n':
		e.emit('\n')
	case 'r':
		e.emit('\r')
	case 't':
		e.emit('\t')
	case 'u':
		e.inUnicode = true
		e.unicodeBuf = e.unicodeBuf[:0]
	default:
		e.emit(r)
	}
}

// emitCodeUnit handles one decoded \uXXXX UTF-16 code unit.
func (e *Extractor) emitCodeUnit(u rune) {
	switch {
	case u >= surrLowMin && u <= surrLowMax && e.pendingHigh != 0:
		combined := (e.pendingHigh-surrHighMin)<<10 + (u - surrLowMin) + 0x10000
		e.pendingHigh = 0
		e.emit(combined)
	case u >= surrHighMin && u <= surrHighMax:
		e.flushPending()
		e.pendingHigh = u
	case u >= surrLowMin && u <= surrLowMax:
		e.emit(unicode.ReplacementChar)
	default:
		e.emit(u)
	}
}

// flushPending emits a dangling high surrogate as U+FFFD.
func (e *Extractor) flushPending() {
	if e.pendingHigh == 0 {
		return
	}
	e.pendingHigh = 0
	e.write(unicode.ReplacementChar)
}

func (e *Extractor) emit(r rune) {
	e.flushPending()
	e.write(r)
}

func (e *Extractor) write(r rune) {
	e.value.WriteRune(r)
	if e.sink != nil {
		e.sink(r)
	}
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func parseHex4(b []byte) rune {
	var v rune
	for _, c := range b {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			v |= rune(c-'a') + 10
		default:
			v |= rune(c-'A') + 10
		}
	}
	return v
}
