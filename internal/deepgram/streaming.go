// Package deepgram streams PCM audio to the Deepgram live transcription
// websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rbright/rehearse/internal/transcript"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Language    string
	SmartFormat bool
	SampleRate  int
	Keywords    []string
}

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")

// Dial opens a live transcription stream.
func Dial(ctx context.Context, cfg Config) (*Stream, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	wsURL, err := buildListenURL(cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("connect to deepgram websocket: %w", err)
	}

	s := &Stream{
		conn:      conn,
		audio:     make(chan []byte, 32),
		updates:   make(chan string, 1),
		done:      make(chan struct{}),
		writeDone: make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.updates)
		close(s.done)
		_ = conn.Close()
	}()
	return s, nil
}

// Stream is one live transcription websocket session.
type Stream struct {
	conn *websocket.Conn

	audio     chan []byte
	updates   chan string
	done      chan struct{}
	writeDone chan struct{}
	segments  transcript.Segments

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

// SendAudio queues one PCM chunk for the write loop.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.writeDone:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	case <-s.done:
		return errors.New("session closed")
	}
}

// Updates delivers the cumulative transcript whenever it changes. The
// channel closes when the session ends.
func (s *Stream) Updates() <-chan string {
	return s.updates
}

// CloseAndCollect asks Deepgram to flush and returns the final transcript
// once the server closes the session.
func (s *Stream) CloseAndCollect(ctx context.Context) (string, error) {
	// closeSend waits out a SendAudio blocked on a stalled writer.
	go s.closeSend()
	select {
	case <-s.done:
	case <-ctx.Done():
		_ = s.Cancel()
		return s.segments.Final(), ctx.Err()
	}
	return s.segments.Final(), s.waitErr()
}

// Cancel closes the websocket without waiting for a flush. Closing the
// conn first unblocks a write loop stuck on the network.
func (s *Stream) Cancel() error {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		s.closeSend()
	})
	<-s.done
	return nil
}

func (s *Stream) closeSend() {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
}

func (s *Stream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) writeLoop() {
	defer s.wg.Done()
	defer close(s.writeDone)

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("close stream: %w", err))
	}
}

func (s *Stream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.setErr(fmt.Errorf("read deepgram event: %w", err))
			}
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		text := extractTranscript(response)
		if text == "" {
			continue
		}
		if response.IsFinal || response.SpeechFinal {
			s.segments.AddFinal(text)
		} else {
			s.segments.SetInterim(text)
		}
		offerLatest(s.updates, s.segments.Text())
	}
}

type alternative struct {
	Transcript string `json:"transcript"`
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram base url: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "nova-2"
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	query := listenURL.Query()
	query.Set("model", model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(rate))
	query.Set("channels", "1")
	query.Set("interim_results", "true")
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	for _, keyword := range cfg.Keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			query.Add("keywords", keyword)
		}
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

// offerLatest replaces any unread value in ch with text.
func offerLatest(ch chan string, text string) {
	for {
		select {
		case ch <- text:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
