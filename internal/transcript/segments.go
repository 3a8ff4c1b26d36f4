package transcript

import (
	"strings"
	"sync"
)

// Segments accumulates final recognizer segments and the latest interim
// hypothesis for the utterance in progress. It is safe for concurrent use.
type Segments struct {
	mu      sync.Mutex
	finals  []string
	interim string
}

// AddFinal appends a finalized segment and clears the pending interim.
// A final that repeats the previous one is dropped.
func (s *Segments) AddFinal(text string) {
	text = strings.TrimSpace(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interim = ""
	if text == "" {
		return
	}
	if n := len(s.finals); n > 0 && s.finals[n-1] == text {
		return
	}
	s.finals = append(s.finals, text)
}

// SetInterim replaces the in-progress hypothesis.
func (s *Segments) SetInterim(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interim = strings.TrimSpace(text)
}

// Text returns finals plus the pending interim as one cumulative transcript.
func (s *Segments) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := append([]string(nil), s.finals...)
	if s.interim != "" {
		parts = append(parts, s.interim)
	}
	return Normalize(strings.Join(parts, " "), Options{})
}

// Final returns finals only, promoting a trailing interim when no final
// covered it before the stream closed.
func (s *Segments) Final() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := append([]string(nil), s.finals...)
	if s.interim != "" {
		parts = append(parts, s.interim)
	}
	return strings.Join(parts, " ")
}

// Reset clears all accumulated text.
func (s *Segments) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = nil
	s.interim = ""
}
