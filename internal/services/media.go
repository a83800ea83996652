package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MediaService extracts the audio track from uploaded video files via
// ffmpeg, the same way the rest of the pipeline expects plain audio input.
type MediaService struct {
	tempDir string
}

func NewMediaService(tempDir string) *MediaService {
	return &MediaService{tempDir: tempDir}
}

// ConvertVideoToAudio writes the video's audio track to a uniquely named
// mp3 in the temp directory and returns its path. The caller owns the
// output file.
func (s *MediaService) ConvertVideoToAudio(ctx context.Context, videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("video file not found at %s: %w", videoPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outputPath := filepath.Join(s.tempDir, fmt.Sprintf("%s_%s.mp3", base, uuid.New().String()))

	cmd := exec.CommandContext(ctx, "ffmpeg", "-i", videoPath, "-q:a", "0", "-map", "a", outputPath, "-y")
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg failed: %w (%s)", err, strings.TrimSpace(string(output)))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return "", fmt.Errorf("audio extraction failed, output file not created: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(outputPath)
		return "", fmt.Errorf("audio extraction failed, output file is empty")
	}

	log.Printf("media: extracted audio %s (%d bytes)", outputPath, info.Size())
	return outputPath, nil
}
