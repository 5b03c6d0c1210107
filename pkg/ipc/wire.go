package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

const maxFrameSize = 16 << 20 // 16MiB guards against a corrupt length prefix

// writeFrame encodes v as JSON and writes it length-prefixed (4-byte
// big-endian) so readFrame never has to guess where one message ends and
// the next begins on a streaming TCP socket.
func writeFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ipc: encode frame: %w", err)
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("ipc: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("ipc: write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed JSON frame and decodes it into v.
func readFrame(r io.Reader, v any) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("ipc: read frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header)
	if size > maxFrameSize {
		return fmt.Errorf("ipc: frame size %d exceeds max %d", size, maxFrameSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("ipc: read frame payload: %w", err)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("ipc: decode frame: %w", err)
	}
	return nil
}
