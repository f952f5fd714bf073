// Package wire defines the peer wire protocol framing from spec.md §6:
// fixed tag values, page-sized or size_t-sized bodies, and canonical
// endianness for heterogeneous deployments. Framing here follows the
// same length-prefixed-over-net.Conn shape as machine_linux.go's vsock
// request/response exchange (a single marshaled body per message),
// adapted to the binary, tag-demultiplexed protocol spec.md specifies
// rather than JSON.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Tag enumerates the peer protocol's message kinds.
type Tag byte

const (
	Terminate Tag = 0
	PutOffset Tag = 1
	PutData   Tag = 2
	Get       Tag = 3
	Response  Tag = 4
)

func (t Tag) String() string {
	switch t {
	case Terminate:
		return "TERMINATE"
	case PutOffset:
		return "PUT_OFFSET"
	case PutData:
		return "PUT_DATA"
	case Get:
		return "GET"
	case Response:
		return "RESPONSE"
	default:
		return fmt.Sprintf("Tag(%d)", byte(t))
	}
}

// frameHeader is {tag byte, length uint32} preceding every message
// body, letting a single ordered byte stream carry both the
// size_t-sized control messages (OFFSET/GET) and the page-sized data
// messages (DATA/RESPONSE).
const headerSize = 5

// WriteOffset sends a PUT_OFFSET or GET control message: an 8-byte
// size_t payload naming a destination/source offset, encoded in
// canonical (big-endian) order when heterogeneous is true, native
// (little-endian, matching amd64/arm64) order otherwise.
func WriteOffset(w io.Writer, tag Tag, offset uint64, heterogeneous bool) error {
	if tag != PutOffset && tag != Get {
		return fmt.Errorf("wire: WriteOffset called with tag %s", tag)
	}
	var buf [headerSize + 8]byte
	buf[0] = byte(tag)
	binary.LittleEndian.PutUint32(buf[1:5], 8)
	if heterogeneous {
		binary.BigEndian.PutUint64(buf[5:], offset)
	} else {
		binary.LittleEndian.PutUint64(buf[5:], offset)
	}
	_, err := w.Write(buf[:])
	return err
}

// WriteData sends a PUT_DATA or RESPONSE message carrying exactly
// pageSize bytes.
func WriteData(w io.Writer, tag Tag, payload []byte) error {
	if tag != PutData && tag != Response {
		return fmt.Errorf("wire: WriteData called with tag %s", tag)
	}
	var hdr [headerSize]byte
	hdr[0] = byte(tag)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// WriteTerminate sends a bare TERMINATE message with no body.
func WriteTerminate(w io.Writer) error {
	var hdr [headerSize]byte
	hdr[0] = byte(Terminate)
	_, err := w.Write(hdr[:])
	return err
}

// Message is one decoded frame.
type Message struct {
	Tag     Tag
	Offset  uint64 // valid when Tag is PutOffset or Get
	Payload []byte // valid when Tag is PutData or Response
}

// ReadMessage reads and decodes exactly one frame. Any tag/length
// mismatch against the legal sequences in spec.md §6 is a fatal
// protocol error and returns a non-nil error; callers on the fatal
// path abort rather than attempt recovery.
func ReadMessage(r io.Reader, heterogeneous bool) (Message, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, err
	}
	tag := Tag(hdr[0])
	length := binary.LittleEndian.Uint32(hdr[1:5])

	switch tag {
	case Terminate:
		if length != 0 {
			return Message{}, fmt.Errorf("wire: TERMINATE with nonzero length %d", length)
		}
		return Message{Tag: tag}, nil

	case PutOffset, Get:
		if length != 8 {
			return Message{}, fmt.Errorf("wire: %s with length %d, want 8", tag, length)
		}
		var body [8]byte
		if _, err := io.ReadFull(r, body[:]); err != nil {
			return Message{}, err
		}
		var offset uint64
		if heterogeneous {
			offset = binary.BigEndian.Uint64(body[:])
		} else {
			offset = binary.LittleEndian.Uint64(body[:])
		}
		return Message{Tag: tag, Offset: offset}, nil

	case PutData, Response:
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return Message{}, err
		}
		return Message{Tag: tag, Payload: body}, nil

	default:
		return Message{}, fmt.Errorf("wire: unrecognized tag %d", hdr[0])
	}
}
