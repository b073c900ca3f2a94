package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

// ffmpeg progress lines look like:
//   frame=  480 fps= 24 q=28.0 size=    2048KiB time=00:00:20.00 bitrate= 838.9kbits/s drop=3 speed=1.0x
var (
	fpsRe     = regexp.MustCompile(`fps=\s*([\d.]+)`)
	bitrateRe = regexp.MustCompile(`bitrate=\s*([\d.]+)\s*kbits/s`)
	dropRe    = regexp.MustCompile(`drop=\s*(\d+)`)
	resRe     = regexp.MustCompile(`(\d{2,5})x(\d{2,5})`)
)

type sampler struct{}

func NewHealthSampler() ports.HealthSampler {
	return &sampler{}
}

// Sample scrapes transcoder diagnostics for frame rate and bitrate signals.
// Parsing is best-effort: lines that match nothing leave zero values, and the
// uptime is always populated.
func (s *sampler) Sample(proc domain.TranscoderProcess, startedAt time.Time) *domain.HealthSnapshot {
	snapshot := &domain.HealthSnapshot{
		Uptime:    time.Since(startedAt),
		SampledAt: time.Now(),
	}
	if proc == nil {
		return snapshot
	}

	for _, line := range proc.Diagnostics() {
		if m := fpsRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				snapshot.FrameRate = v
			}
		}
		if m := bitrateRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				snapshot.BitrateKbps = v
			}
		}
		if m := dropRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				snapshot.DroppedFrames = v
			}
		}
		if snapshot.Resolution == "" && strings.Contains(line, "Video:") {
			if m := resRe.FindString(line); m != "" {
				snapshot.Resolution = m
			}
		}
		if strings.Contains(strings.ToLower(line), "error") {
			snapshot.LastError = line
		}
	}

	// Simple liveness-derived signal strength: a pipeline producing frames
	// at normal speed reads as full strength.
	switch {
	case snapshot.FrameRate >= 20:
		snapshot.SignalStrength = 1.0
	case snapshot.FrameRate > 0:
		snapshot.SignalStrength = snapshot.FrameRate / 20
	}

	return snapshot
}
