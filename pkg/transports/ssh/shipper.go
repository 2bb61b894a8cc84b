package ssh

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"
)

// Shipper copies capsule files to a remote directory and verifies the
// transfer with a SHA256 checksum comparison.
type Shipper struct {
	transport Transport
	remoteDir string
	logger    zerolog.Logger
}

// NewShipper creates a shipper for the given transport. remoteDir is
// the directory capsules are copied into; empty means the login
// directory.
func NewShipper(transport Transport, remoteDir string, logger zerolog.Logger) *Shipper {
	return &Shipper{
		transport: transport,
		remoteDir: remoteDir,
		logger:    logger.With().Str("component", "capsule-shipper").Logger(),
	}
}

// Push uploads a local capsule file and verifies it landed intact. The
// remote file keeps the given name under the shipper's remote
// directory. A checksum mismatch removes the remote copy and fails.
func (s *Shipper) Push(ctx context.Context, localPath string, name string) (*PushResult, error) {
	start := time.Now()

	if !s.transport.IsConnected() {
		if err := s.transport.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localPath, err)
	}

	localSum, err := LocalChecksum(localPath)
	if err != nil {
		return nil, fmt.Errorf("checksum %s: %w", localPath, err)
	}

	remotePath := name
	if s.remoteDir != "" {
		remotePath = path.Join(s.remoteDir, name)
	}

	if err := s.transport.UploadFile(ctx, localPath, remotePath, 0o600); err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}

	remoteSum, err := s.transport.ComputeChecksum(ctx, remotePath)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", name, err)
	}

	if remoteSum != localSum {
		s.logger.Error().
			Str("capsule", name).
			Str("local", localSum).
			Str("remote", remoteSum).
			Msg("Checksum mismatch, removing remote copy")
		_, _, _ = s.transport.ExecuteCommand(ctx, fmt.Sprintf("rm -f %s", remotePath))
		return nil, &TransportError{
			Op:          "verify",
			Err:         fmt.Errorf("checksum mismatch for %s: local %s, remote %s", name, localSum, remoteSum),
			IsTemporary: true,
		}
	}

	result := &PushResult{
		RemotePath:       remotePath,
		BytesTransferred: info.Size(),
		Checksum:         remoteSum,
		Duration:         time.Since(start),
	}

	s.logger.Info().
		Str("capsule", name).
		Str("remote", remotePath).
		Str("checksum", remoteSum).
		Dur("duration", result.Duration).
		Msg("Capsule shipped")

	return result, nil
}

// PushAll ships several capsule files, stopping at the first failure.
func (s *Shipper) PushAll(ctx context.Context, localPaths map[string]string) ([]*PushResult, error) {
	results := make([]*PushResult, 0, len(localPaths))
	for name, localPath := range localPaths {
		result, err := s.Push(ctx, localPath, name)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}
