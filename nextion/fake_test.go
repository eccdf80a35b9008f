package nextion

import (
	"bytes"
	"io"
)

// fakeLink is an in-memory Transport. Replies are served from rx, writes
// land in tx once flushed.
type fakeLink struct {
	tx      bytes.Buffer
	pending []byte
	rx      *bytes.Reader

	writes   int
	writeErr error
	flushErr error
	readErr  error
}

func newFakeLink(replies ...[]byte) *fakeLink {
	return &fakeLink{rx: bytes.NewReader(bytes.Join(replies, nil))}
}

func (f *fakeLink) Write(b []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes++
	f.pending = append(f.pending, b...)
	return len(b), nil
}

func (f *fakeLink) Flush() error {
	if f.flushErr != nil {
		return f.flushErr
	}
	f.tx.Write(f.pending)
	f.pending = nil
	return nil
}

func (f *fakeLink) ReadByte() (byte, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	b, err := f.rx.ReadByte()
	if err != nil {
		return 0, io.EOF
	}
	return b, nil
}

func (f *fakeLink) remaining() int { return f.rx.Len() }

func frame(cmd string) []byte {
	return append([]byte(cmd), 0xFF, 0xFF, 0xFF)
}

func numberReply(v uint32) []byte {
	return []byte{TagNumber, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24), 0xFF, 0xFF, 0xFF}
}

func stringReply(s string) []byte {
	return append(append([]byte{TagString}, s...), 0xFF, 0xFF, 0xFF)
}
