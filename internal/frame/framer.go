package frame

import "bytes"

// safetyThreshold is the largest chunk of undelimited bytes the framer will
// buffer before emitting it anyway, to avoid deadlocking on a very large
// BLOB whose closing tag hasn't arrived yet (spec §4.1).
const safetyThreshold = 32 * 1024

type framerState int

const (
	stateIdle framerState = iota
	stateInFrame
)

// Framer reassembles complete top-level INDI XML elements out of an
// arbitrarily chunked byte stream. The INDI wire format has no document
// root, so frames must be delimited by tag matching rather than by a
// single XML document decode.
//
// Framer is not safe for concurrent use; each transport's reader goroutine
// owns one Framer.
type Framer struct {
	state framerState
	raw   bytes.Buffer // bytes fed in but not yet consumed
	buf   bytes.Buffer // bytes belonging to the frame currently being assembled
	tag   string
}

// New returns a Framer ready to consume bytes from a fresh stream.
func New() *Framer {
	return &Framer{state: stateIdle}
}

// Feed appends chunk to the framer's internal buffer and returns every
// complete frame that can now be delimited. Feed never blocks; partial
// frames are retained internally until more bytes arrive. The returned
// slices are independent copies, safe to retain.
//
// Feed is chunk-invariant: for any way a logical byte stream is split into
// chunks, the sequence of frames emitted across all calls is the same
// (spec §8).
func (f *Framer) Feed(chunk []byte) [][]byte {
	f.raw.Write(chunk)

	var frames [][]byte

	for f.raw.Len() > 0 {
		switch f.state {
		case stateIdle:
			data := f.raw.Bytes()
			retainFrom, matched, tag, nameEnd := findFrameStart(data)
			if !matched {
				remaining := append([]byte(nil), data[retainFrom:]...)
				f.raw.Reset()
				f.raw.Write(remaining)
				return frames
			}

			f.tag = tag
			f.buf.Reset()
			f.buf.Write(data[retainFrom:nameEnd])

			remaining := append([]byte(nil), data[nameEnd:]...)
			f.raw.Reset()
			f.raw.Write(remaining)
			f.state = stateInFrame

		case stateInFrame:
			data := f.raw.Bytes()
			idx := bytes.IndexByte(data, '>')
			if idx < 0 {
				f.buf.Write(data)
				f.raw.Reset()
				if f.buf.Len() > safetyThreshold {
					frames = append(frames, f.emit())
				}
				return frames
			}

			f.buf.Write(data[:idx+1])
			remaining := append([]byte(nil), data[idx+1:]...)
			f.raw.Reset()
			f.raw.Write(remaining)

			if f.frameComplete() {
				frames = append(frames, f.emit())
			}
		}
	}

	return frames
}

// findFrameStart scans data (discarding leading whitespace and any
// unrecognised "<..." noise per spec §4.1) for the start of a recognised
// frame tag.
//
// If matched, retainFrom..nameEnd is the "<tagname" prefix to seed the new
// frame's buffer with, and tag is the matched tag name.
//
// If not matched, retainFrom marks the first byte that must be retained
// for the next call: either len(data) (nothing useful remains) or the
// index of a '<' whose following name is not yet fully present in data
// (more bytes may still complete a recognised tag name).
func findFrameStart(data []byte) (retainFrom int, matched bool, tag string, nameEnd int) {
	i := 0
	for i < len(data) {
		for i < len(data) && isSpace(data[i]) {
			i++
		}
		if i >= len(data) {
			return i, false, "", 0
		}
		if data[i] != '<' {
			i++
			continue
		}

		j := i + 1
		for j < len(data) && isNameByte(data[j]) {
			j++
		}
		if j == i+1 {
			// '<' not followed by any name character - not a tag start.
			i++
			continue
		}
		if j == len(data) {
			// The name might still be continuing in a future chunk.
			return i, false, "", 0
		}

		name := string(data[i+1 : j])
		if recognisedTags[Tag(name)] {
			return i, true, name, j
		}
		i++
	}
	return i, false, "", 0
}

// frameComplete reports whether the buffer, as it stands, is a complete
// frame: either its opening tag is self-closing ("/>") or it ends with a
// matching closing tag ("</tag>"). A "/>" that ends a nested child element
// (e.g. <defBLOB .../>) does not complete the frame.
func (f *Framer) frameComplete() bool {
	b := bytes.TrimRight(f.buf.Bytes(), " \t\r\n")
	if bytes.IndexByte(b, '>') == len(b)-1 && bytes.HasSuffix(b, []byte("/>")) {
		return true
	}
	closing := "</" + f.tag + ">"
	return bytes.HasSuffix(b, []byte(closing))
}

// emit returns the buffered frame bytes and resets the framer to Idle.
func (f *Framer) emit() []byte {
	out := make([]byte, f.buf.Len())
	copy(out, f.buf.Bytes())
	f.buf.Reset()
	f.state = stateIdle
	f.tag = ""
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func isNameByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' || b == '-' || b == ':'
}
