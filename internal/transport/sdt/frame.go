// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sdt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frameTag distinguishes text from binary payloads on the wire, since SDT
// has no native framing of its own (spec.md §6: "opaque binary/text
// framing; no further wire format is mandated").
type frameTag byte

const (
	frameTagBinary frameTag = 0
	frameTagText   frameTag = 1
)

// maxFrameLen caps a single frame's payload to guard against a corrupt or
// malicious length prefix exhausting memory.
const maxFrameLen = 16 * 1024 * 1024

// writeFrame writes a length-prefixed frame: uint32 big-endian length
// (tag + payload) followed by the 1-byte tag and the payload.
func writeFrame(w io.Writer, tag frameTag, payload []byte) error {
	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header, uint32(len(payload)+1))
	header[4] = byte(tag)
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one length-prefixed frame from r.
func readFrame(r io.Reader) (frameTag, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n == 0 {
		return 0, nil, fmt.Errorf("sdt: frame length must include the tag byte")
	}
	if n > maxFrameLen {
		return 0, nil, fmt.Errorf("sdt: frame length %d exceeds maximum %d", n, maxFrameLen)
	}
	tag := frameTag(header[4])
	payload := make([]byte, n-1)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return tag, payload, nil
}
