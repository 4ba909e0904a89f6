package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gekko3d/raytrace/tracer/rt/accel"
)

// Phase is one CPU stage of a frame.
type Phase int

const (
	PhaseInput Phase = iota
	PhaseScene
	PhaseRender
	phaseCount
)

var phaseNames = [phaseCount]string{"input", "scene", "render"}

func (p Phase) String() string {
	if p < 0 || p >= phaseCount {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// FrameStats follows the progressive accumulation from the CPU side: phase
// timings of the last frame, the sample count and how often it restarted,
// and the top-level structure currently uploaded.
type FrameStats struct {
	Phases [phaseCount]time.Duration

	Frames   uint64
	Skipped  uint64
	Samples  uint32
	Restarts uint64

	Instances      int
	TLASGeneration uint64
	TLASRebuilds   int
	TLASRefits     int

	now func() time.Time
}

func NewFrameStats() *FrameStats {
	return newFrameStats(time.Now)
}

func newFrameStats(now func() time.Time) *FrameStats {
	return &FrameStats{now: now}
}

// Time starts timing p. The returned func stores the duration; call it with
// defer so every return path closes the phase.
func (s *FrameStats) Time(p Phase) func() {
	start := s.now()
	return func() { s.Phases[p] = s.now().Sub(start) }
}

// RecordSample notes the count returned by a successful render. A count that
// does not grow means accumulation was restarted before this sample.
func (s *FrameStats) RecordSample(n uint32) {
	if s.Frames > 0 && n <= s.Samples {
		s.Restarts++
	}
	s.Samples = n
	s.Frames++
}

// RecordScene notes an uploaded top level.
func (s *FrameStats) RecordScene(h accel.TLASHandle) {
	s.Instances = h.Instances
	s.TLASGeneration = h.Generation
	switch {
	case h.Refit:
		s.TLASRefits++
	case h.Instances > 0:
		s.TLASRebuilds++
	}
}

// Reset zeroes the phase timings and keeps the counters.
func (s *FrameStats) Reset() {
	s.Phases = [phaseCount]time.Duration{}
}

func (s *FrameStats) String() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for p := Phase(0); p < phaseCount; p++ {
		fmt.Fprintf(&sb, "  %-15s: %.2f ms\n", p, float64(s.Phases[p].Microseconds())/1000.0)
	}

	sb.WriteString("\nAccumulation:\n")
	fmt.Fprintf(&sb, "  %-15s: %d\n", "samples", s.Samples)
	fmt.Fprintf(&sb, "  %-15s: %d\n", "restarts", s.Restarts)
	fmt.Fprintf(&sb, "  %-15s: %d\n", "frames", s.Frames)
	fmt.Fprintf(&sb, "  %-15s: %d\n", "skipped", s.Skipped)

	sb.WriteString("\nTop level:\n")
	fmt.Fprintf(&sb, "  %-15s: %d\n", "generation", s.TLASGeneration)
	fmt.Fprintf(&sb, "  %-15s: %d\n", "instances", s.Instances)
	fmt.Fprintf(&sb, "  %-15s: %d/%d\n", "rebuild/refit", s.TLASRebuilds, s.TLASRefits)
	return sb.String()
}
