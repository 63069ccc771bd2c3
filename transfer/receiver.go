package transfer

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/aokellermann/securedrop-go/cryptoutil"
	"github.com/aokellermann/securedrop-go/frame"
)

// Receiver is an ephemeral, one-shot TLS listener for the receiving side
// of a peer-to-peer transfer. It accepts exactly one connection, then
// closes (spec.md §4.4).
type Receiver struct {
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds 0.0.0.0:0 (OS-chosen port) for the P2P transfer.
func Listen(tlsConfig *tls.Config, logger *slog.Logger) (*Receiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := tls.Listen("tcp", "0.0.0.0:0", tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("transfer: listen: %w", err)
	}
	return &Receiver{ln: ln, logger: logger}, nil
}

// Port returns the OS-assigned port to report back via FTSP.
func (r *Receiver) Port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

// Close releases the listener without accepting a connection, for
// cancellation before the sender dials in.
func (r *Receiver) Close() error {
	return r.ln.Close()
}

// Accept accepts exactly one connection, runs the receiver protocol
// against outputPath, and closes the listener regardless of outcome.
// outputPath must not already exist (spec.md §4.4's invariant).
func (r *Receiver) Accept(token, outputPath string, progress *Progress) error {
	defer r.ln.Close()

	conn, err := r.ln.Accept()
	if err != nil {
		return fmt.Errorf("transfer: accept: %w", err)
	}
	defer conn.Close()

	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("transfer: output path %s already exists", outputPath)
	}

	reader := frame.NewReader(conn)
	writer := frame.NewWriter(conn)

	first, err := reader.ReadFrame()
	if err != nil {
		return fmt.Errorf("transfer: await FTPF: %w", err)
	}
	if first.Tag != frame.TagTransferFileInfo {
		return fmt.Errorf("transfer: expected FTPF, got %s", first.Tag)
	}
	var info frame.TransferFileInfoPayload
	if err := first.Decode(&info); err != nil {
		return fmt.Errorf("transfer: decode FTPF: %w", err)
	}
	if info.Token != token {
		return fmt.Errorf("transfer: token mismatch")
	}

	if progress != nil {
		progress.Total.Store(uint32(info.FileInfo.Chunks))
	}

	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("transfer: create %s: %w", outputPath, err)
	}

	received := 0
	for received < info.FileInfo.Chunks {
		cf, err := reader.ReadFrame()
		if err != nil {
			out.Close()
			return fmt.Errorf("transfer: read chunk %d: %w", received, err)
		}
		if cf.Tag != frame.TagTransferChunk {
			out.Close()
			return fmt.Errorf("transfer: expected chunk, got %s", cf.Tag)
		}
		var chunk frame.TransferChunkPayload
		if err := cf.Decode(&chunk); err != nil {
			out.Close()
			return fmt.Errorf("transfer: decode chunk: %w", err)
		}
		data, err := base64.StdEncoding.DecodeString(chunk.Chunk)
		if err != nil {
			out.Close()
			return fmt.Errorf("transfer: decode base64 chunk: %w", err)
		}
		if _, err := out.Write(data); err != nil {
			out.Close()
			return fmt.Errorf("transfer: write chunk: %w", err)
		}
		received++
		if progress != nil {
			progress.Sent.Store(uint32(received))
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("transfer: close %s: %w", outputPath, err)
	}

	gotHash, err := cryptoutil.HashFile(outputPath)
	if err != nil {
		return fmt.Errorf("transfer: hash %s: %w", outputPath, err)
	}

	msg := ""
	if gotHash != info.FileInfo.SHA256 {
		msg = "File hashes don't match!"
	}
	statusFrame, err := frame.New(frame.TagStatus, frame.StatusPayload{Message: msg})
	if err != nil {
		return fmt.Errorf("transfer: build STAT: %w", err)
	}
	if err := writer.WriteFrame(statusFrame); err != nil {
		return fmt.Errorf("transfer: send STAT: %w", err)
	}

	if msg != "" {
		return fmt.Errorf("transfer: %s", msg)
	}
	r.logger.Debug("transfer received", "path", outputPath, "chunks", received)
	return nil
}
