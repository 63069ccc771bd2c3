package transfer

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aokellermann/securedrop-go/cryptoutil"
	"github.com/aokellermann/securedrop-go/frame"
)

// ChunkSize is the maximum number of file bytes carried per FTPC frame
// (spec.md §4.4).
const ChunkSize = 4096

// Send dials the receiver at addr, performs the sender side of the
// peer-to-peer transfer protocol for the file at path, and returns once
// the receiver's final STAT arrives. An empty STAT message is success;
// any other message is returned as an error (spec.md §4.4).
func Send(ctx context.Context, addr string, tlsConfig *tls.Config, path, token string, progress *Progress, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("transfer: stat %s: %w", path, err)
	}
	hash, err := cryptoutil.HashFile(path)
	if err != nil {
		return fmt.Errorf("transfer: hash %s: %w", path, err)
	}

	chunks := int((info.Size() + ChunkSize - 1) / ChunkSize)
	if progress != nil {
		progress.Total.Store(uint32(chunks))
	}

	dialer := &tls.Dialer{Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("transfer: dial %s: %w", addr, err)
	}
	defer conn.Close()

	reader := frame.NewReader(conn)
	writer := frame.NewWriter(conn)

	infoFrame, err := frame.New(frame.TagTransferFileInfo, frame.TransferFileInfoPayload{
		FileInfo: frame.TransferFileInfo{
			Name:   filepath.Base(path),
			Chunks: chunks,
			SHA256: hash,
		},
		Token: token,
	})
	if err != nil {
		return fmt.Errorf("transfer: build FTPF: %w", err)
	}
	if err := writer.WriteFrame(infoFrame); err != nil {
		return fmt.Errorf("transfer: send FTPF: %w", err)
	}

	if err := sendChunks(path, writer, progress); err != nil {
		return err
	}

	reply, err := reader.ReadFrame()
	if err != nil {
		return fmt.Errorf("transfer: await STAT: %w", err)
	}
	var status frame.StatusPayload
	if err := reply.Decode(&status); err != nil {
		return fmt.Errorf("transfer: decode STAT: %w", err)
	}
	if status.Message != "" {
		return fmt.Errorf("transfer: %s", status.Message)
	}
	logger.Debug("transfer sent", "path", path, "chunks", chunks)
	return nil
}

func sendChunks(path string, writer *frame.Writer, progress *Progress) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("transfer: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	sent := uint32(0)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			chunkFrame, err := frame.New(frame.TagTransferChunk, frame.TransferChunkPayload{
				Chunk: base64.StdEncoding.EncodeToString(buf[:n]),
			})
			if err != nil {
				return fmt.Errorf("transfer: build chunk: %w", err)
			}
			if err := writer.WriteFrame(chunkFrame); err != nil {
				return fmt.Errorf("transfer: send chunk: %w", err)
			}
			sent++
			if progress != nil {
				progress.Sent.Store(sent)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("transfer: read %s: %w", path, readErr)
		}
	}
}
