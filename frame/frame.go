// Package frame implements SecureDrop's wire framing: a 4-byte ASCII
// message-type tag followed by a JSON payload, terminated by the two-byte
// sentinel "\n\n".
package frame

import (
	"encoding/json"
	"fmt"
)

// Sentinel terminates every frame on the wire.
const Sentinel = "\n\n"

// TagLen is the fixed width of a frame's message-type tag.
const TagLen = 4

// Tag constants, exact bytes as used on the wire.
const (
	TagRegister         = "RGTR"
	TagLogin             = "LGIN"
	TagStatus            = "STAT"
	TagAddContact        = "ADDC"
	TagListContacts      = "LCPN"
	TagListContactsReply = "LCRN"
	TagTransferRequest   = "FTRP"
	TagTransferCheck     = "FTCR"
	TagTransferRequests  = "FTRR"
	TagTransferAccept    = "FTAR"
	TagTransferExchange  = "FTEA"
	TagTransferSetPort   = "FTSP"
	TagTransferPort      = "FTPT"
	TagTransferFileInfo  = "FTPF"
	// TagTransferChunk carries one base64-encoded file chunk. The reference
	// implementation reused FTPF for both the file-info frame and every
	// chunk frame, relying on positional disambiguation (first frame after
	// connect is file-info, everything after is a chunk). This port assigns
	// chunks their own tag instead, per the interoperability note in
	// spec.md §9 — positional disambiguation is fragile against a dropped
	// or reordered frame, and a distinct tag costs nothing on the wire.
	TagTransferChunk = "FTPC"
)

// Frame is one decoded wire message: a 4-byte tag plus its raw JSON payload.
type Frame struct {
	Tag     string
	Payload []byte
}

// New builds a Frame from a tag and a value that will be marshaled to JSON.
func New(tag string, v any) (Frame, error) {
	if len(tag) != TagLen {
		return Frame{}, fmt.Errorf("frame: tag %q must be %d bytes", tag, TagLen)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("frame: marshal %s payload: %w", tag, err)
	}
	return Frame{Tag: tag, Payload: payload}, nil
}

// Bytes renders the frame in its on-wire form: tag + payload + sentinel.
func (f Frame) Bytes() []byte {
	out := make([]byte, 0, TagLen+len(f.Payload)+len(Sentinel))
	out = append(out, f.Tag...)
	out = append(out, f.Payload...)
	out = append(out, Sentinel...)
	return out
}

// Decode unmarshals the frame's payload into v.
func (f Frame) Decode(v any) error {
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("frame: decode %s payload: %w", f.Tag, err)
	}
	return nil
}
