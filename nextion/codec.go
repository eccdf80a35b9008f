package nextion

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

// Tag bytes of inbound frames
const (
	TagInvalidCmd         byte = 0x00 // Instruction not recognized
	TagOK                 byte = 0x01 // Command executed (only sent with bkcmd=1 or 3)
	TagInvalidComponentID byte = 0x02
	TagInvalidPageID      byte = 0x03
	TagInvalidPictureID   byte = 0x04
	TagInvalidFontID      byte = 0x05
	TagInvalidBaud        byte = 0x11
	TagInvalidVariable    byte = 0x1A // Unknown variable or attribute name
	TagInvalidOperation   byte = 0x1B
	TagTouch              byte = 0x65 // Touch event: page, component, state
	TagCurrentPage        byte = 0x66 // Answer to sendme: page
	TagTouchPosition      byte = 0x67 // Touch coordinates: x hi, x lo, y hi, y lo, state
	TagSleepPosition      byte = 0x68 // Touch coordinates while sleeping
	TagString             byte = 0x70 // String payload, terminated
	TagNumber             byte = 0x71 // 4 byte little endian payload
	TagLaunched           byte = 0x88 // Display finished power-on initialization
	TagUpgraded           byte = 0x89 // Display entered firmware upgrade mode
	TagEnd                byte = 0xFF // Terminator byte, three in a row end each frame
)

// terminator is the literal run closing every frame
var terminator = [3]byte{TagEnd, TagEnd, TagEnd}

// Fixed capacities for the chart commands, terminator excluded
const (
	AddCap   = 15
	ClearCap = 11
)

// MaxChannel is the highest waveform channel accepted by add and cle
const MaxChannel = 4

// Transport is the blocking byte link to the display. It is owned by the
// caller and may be shared by many components through a Panel.
type Transport interface {
	Write(b []byte) (int, error)
	Flush() error
	ReadByte() (byte, error)
}

func tooLong(cmd string, n, capacity int) error {
	return fmt.Errorf("%w: %s needs %d bytes, capacity %d", ErrCommandTooLong, cmd, n, capacity)
}

// EncodeSet appends the assignment "<name>.<key>=<value>" and the terminator to dst.
// The command text must fit into capacity bytes. If dst has room for capacity+3
// bytes, no allocation takes place.
func EncodeSet(dst []byte, name, key string, value []byte, capacity int) ([]byte, error) {
	n := len(name) + 1 + len(key) + 1 + len(value)
	if n > capacity {
		return dst, tooLong(name+"."+key+"=", n, capacity)
	}
	dst = append(dst, name...)
	dst = append(dst, '.')
	dst = append(dst, key...)
	dst = append(dst, '=')
	dst = append(dst, value...)
	return append(dst, terminator[:]...), nil
}

// EncodeGet appends the query "get <name>.<key>" and the terminator to dst.
func EncodeGet(dst []byte, name, key string, capacity int) ([]byte, error) {
	n := 4 + len(name) + 1 + len(key)
	if n > capacity {
		return dst, tooLong("get "+name+"."+key, n, capacity)
	}
	dst = append(dst, "get "...)
	dst = append(dst, name...)
	dst = append(dst, '.')
	dst = append(dst, key...)
	return append(dst, terminator[:]...), nil
}

func checkChannel(channel uint8) error {
	if channel > MaxChannel {
		return fmt.Errorf("%w: channel %d, maximum is %d", ErrValueOutOfRange, channel, MaxChannel)
	}
	return nil
}

// EncodeAdd appends the waveform command "add <cid>,<channel>,<value>".
func EncodeAdd(dst []byte, cid, channel, value uint8) ([]byte, error) {
	if err := checkChannel(channel); err != nil {
		return dst, err
	}
	// "add 255,4,255" is 13 bytes and always fits AddCap
	dst = append(dst, "add "...)
	dst = strconv.AppendUint(dst, uint64(cid), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(channel), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(value), 10)
	return append(dst, terminator[:]...), nil
}

// EncodeClear appends the waveform command "cle <cid>,<channel>".
func EncodeClear(dst []byte, cid, channel uint8) ([]byte, error) {
	if err := checkChannel(channel); err != nil {
		return dst, err
	}
	dst = append(dst, "cle "...)
	dst = strconv.AppendUint(dst, uint64(cid), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(channel), 10)
	return append(dst, terminator[:]...), nil
}

// send writes a complete frame and flushes the transport
func send(t Transport, frame []byte) error {
	if _, err := t.Write(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportWrite, err)
	}
	if err := t.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrTransportWrite, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func readByte(t Transport) (byte, error) {
	b, err := t.ReadByte()
	if err != nil {
		if isTimeout(err) {
			return 0, fmt.Errorf("%w: %w: %w", ErrTransportRead, ErrTimedOut, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrTransportRead, err)
	}
	return b, nil
}

// IsRejection reports whether tag is one of the display's error codes
func IsRejection(tag byte) bool {
	switch tag {
	case TagInvalidCmd, TagInvalidComponentID, TagInvalidPageID, TagInvalidPictureID,
		TagInvalidFontID, TagInvalidBaud, TagInvalidVariable, TagInvalidOperation:
		return true
	}
	return false
}

// expectTag reads the leading byte of a frame and checks it against want.
// A rejection code in place of the expected tag consumes the rest of the
// rejection frame and is reported as a DeviceError as well.
func expectTag(t Transport, want byte) error {
	tag, err := readByte(t)
	if err != nil {
		return err
	}
	if tag == want {
		return nil
	}
	if IsRejection(tag) {
		if err := expectTerminator(t); err != nil {
			return err
		}
		return fmt.Errorf("%w: expected tag 0x%02X: %w", ErrMalformedFrame, want, &DeviceError{Code: tag})
	}
	return fmt.Errorf("%w: expected tag 0x%02X, received 0x%02X", ErrMalformedFrame, want, tag)
}

func expectTerminator(t Transport) error {
	var b [3]byte
	for i := range b {
		c, err := readByte(t)
		if err != nil {
			return err
		}
		b[i] = c
	}
	if b != terminator {
		return fmt.Errorf("%w: expected terminator, received % X", ErrMalformedFrame, b[:])
	}
	return nil
}

// readContent copies bytes into out up to the first run of three 0xFF bytes.
// Shorter runs of 0xFF are content. Content beyond len(out) is counted in dropped.
func readContent(t Transport, out []byte) (n, dropped int, err error) {
	run := 0
	put := func(b byte) {
		if n < len(out) {
			out[n] = b
			n++
		} else {
			dropped++
		}
	}
	for {
		b, err := readByte(t)
		if err != nil {
			return n, dropped, err
		}
		if b == TagEnd {
			run++
			if run == len(terminator) {
				return n, dropped, nil
			}
			continue
		}
		// a broken run was content
		for ; run > 0; run-- {
			put(TagEnd)
		}
		put(b)
	}
}

// DecodeString reads a string frame into out and returns the content length.
// If out is too small the rest of the content is read and discarded, and
// ErrTruncated is returned together with len(out).
func DecodeString(t Transport, out []byte) (int, error) {
	if err := expectTag(t, TagString); err != nil {
		return 0, err
	}
	n, dropped, err := readContent(t, out)
	if err != nil {
		return n, err
	}
	if dropped > 0 {
		return n, fmt.Errorf("%w: dropped %d bytes beyond %d byte buffer", ErrTruncated, dropped, len(out))
	}
	return n, nil
}

// DecodeNumber reads a number frame: the tag, exactly four payload bytes with
// byte 0 least significant, and the terminator. The value is narrowed to width.
func DecodeNumber(t Transport, width IntWidth) (int64, error) {
	if err := expectTag(t, TagNumber); err != nil {
		return 0, err
	}
	var payload [4]byte
	if err := readNumber(t, payload[:]); err != nil {
		return 0, err
	}
	return width.narrow(binary.LittleEndian.Uint32(payload[:]))
}

// readNumber reads the fixed payload of a number frame and its terminator
func readNumber(t Transport, payload []byte) error {
	for i := range payload[:4] {
		b, err := readByte(t)
		if err != nil {
			return err
		}
		payload[i] = b
	}
	return expectTerminator(t)
}
