package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/wavescore/wavescore/pkg/utils"
)

// Source is the tagged variant of audio origins the pipeline accepts. The
// transcription core itself never branches on the source type; a Source is
// resolved to WAV bytes before the pipeline runs.
type Source interface {
	isSource()
}

// Upload is audio handed to us directly as a byte buffer.
type Upload struct {
	Data []byte
}

// RemoteFetch is audio acquired from a streaming URL via yt-dlp.
type RemoteFetch struct {
	URL      string
	Provider string // "youtube", "generic", ...
}

func (Upload) isSource()      {}
func (RemoteFetch) isSource() {}

// Resolve turns a Source into mono PCM WAV bytes at the given sample rate.
// Uploads are passed through untouched; remote fetches are downloaded,
// converted, and read back. Temporary files are scoped to tempDir and
// removed before returning.
func Resolve(ctx context.Context, src Source, tempDir string, sampleRate int) ([]byte, error) {
	switch s := src.(type) {
	case Upload:
		return s.Data, nil
	case RemoteFetch:
		return fetchRemote(ctx, s, tempDir, sampleRate)
	default:
		return nil, fmt.Errorf("unknown audio source %T", src)
	}
}

// RemoteInfo is the subset of yt-dlp metadata the glue layers care about.
type RemoteInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Track    string  `json:"track"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

// BestArtist picks the most specific artist field available.
func (m RemoteInfo) BestArtist() string {
	if strings.TrimSpace(m.Artist) != "" {
		return m.Artist
	}
	if strings.TrimSpace(m.Channel) != "" {
		return m.Channel
	}
	if strings.TrimSpace(m.Uploader) != "" {
		return m.Uploader
	}
	return "Unknown Artist"
}

// FetchRemoteInfo extracts metadata for a remote URL without downloading
// the media.
func FetchRemoteInfo(ctx context.Context, url string) (*RemoteInfo, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-J",
		"--no-warnings",
		"--no-playlist",
		url,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp metadata extraction failed: %v\nstderr: %s", err, stderr.String())
	}

	var info RemoteInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp JSON: %w", err)
	}
	if strings.TrimSpace(info.ID) == "" {
		return nil, fmt.Errorf("missing media ID in yt-dlp output")
	}
	return &info, nil
}

func fetchRemote(ctx context.Context, src RemoteFetch, tempDir string, sampleRate int) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 3*time.Minute)
		defer cancel()
	}

	if err := utils.MakeDir(tempDir); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	info, err := FetchRemoteInfo(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	outputTemplate := filepath.Join(tempDir, fmt.Sprintf("%s.%%(ext)s", info.ID))
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-f", "ba", // best audio stream
		"--no-warnings",
		"--no-playlist",
		"-o", outputTemplate,
		src.URL,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp download failed: %v\nstderr: %s", err, stderr.String())
	}

	downloadedPath := ""
	for _, ext := range []string{".m4a", ".webm", ".opus", ".mp3", ".aac", ".ogg", ".wav"} {
		candidate := filepath.Join(tempDir, info.ID+ext)
		if _, err := os.Stat(candidate); err == nil {
			downloadedPath = candidate
			break
		}
	}
	if downloadedPath == "" {
		return nil, fmt.Errorf("downloaded audio file not found for media %s", info.ID)
	}
	defer os.Remove(downloadedPath)

	wavPath, err := ConvertToMonoWAV(ctx, downloadedPath, tempDir, ConvertConfig{SampleRate: sampleRate})
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	return os.ReadFile(wavPath)
}
