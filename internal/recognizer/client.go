package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/transcript"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// StreamConfig controls stream initialization and recognition behavior.
type StreamConfig struct {
	Endpoint             string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	SpeechPhrases        []SpeechPhrase
	DialTimeout          time.Duration
	// DebugSink receives each result frame as one JSON line.
	DebugSink   io.Writer
	DialOptions []grpc.DialOption
}

// Stream wraps one active StreamingRecognize RPC.
type Stream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	recvDone chan struct{}
	updates  chan string
	segments transcript.Segments

	mu          sync.Mutex
	lastInterim string
	recvErr     error
	closedSend  bool
	debugSink   io.Writer
}

// Dial establishes a stream, sends the config frame, and starts receiving.
func Dial(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("recognizer endpoint is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, cfg.DialOptions...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer grpc %q: %w", endpoint, err)
	}

	readyCtx, readyCancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer readyCancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for recognizer grpc readiness: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := conn.NewStream(streamCtx, &streamDesc, "/"+ServiceName+"/"+streamMethod)
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	frame, err := configFrame(cfg)
	if err == nil {
		err = stream.SendMsg(frame)
	}
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("send initial streaming config: %w", err)
	}

	s := &Stream{
		conn:      conn,
		stream:    stream,
		cancel:    cancel,
		recvDone:  make(chan struct{}),
		updates:   make(chan string, 1),
		debugSink: cfg.DebugSink,
	}
	go s.recvLoop()
	return s, nil
}

// Updates delivers the cumulative transcript whenever it changes. Only the
// latest value is buffered. The channel closes when the stream ends.
func (s *Stream) Updates() <-chan string {
	return s.updates
}

func (s *Stream) recvLoop() {
	defer close(s.recvDone)
	defer close(s.updates)

	for {
		frame := &structpb.Struct{}
		err := s.stream.RecvMsg(frame)
		if err == nil {
			s.recordResponse(frame)
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}

		s.mu.Lock()
		s.recvErr = err
		s.mu.Unlock()
		return
	}
}

// recordResponse merges final and interim results into the transcript.
func (s *Stream) recordResponse(frame *structpb.Struct) {
	if sink := s.debugSink; sink != nil {
		if b, err := protojson.Marshal(frame); err == nil {
			_, _ = sink.Write(append(b, '\n'))
		}
	}

	s.mu.Lock()
	changed := false
	for _, result := range ParseResults(frame) {
		text := transcript.Normalize(result.Transcript, transcript.Options{})
		if text == "" {
			continue
		}
		changed = true
		if result.IsFinal {
			s.segments.AddFinal(text)
			s.lastInterim = ""
			continue
		}
		if s.lastInterim != "" && !isInterimContinuation(s.lastInterim, text) {
			s.segments.AddFinal(s.lastInterim)
		}
		s.segments.SetInterim(text)
		s.lastInterim = text
	}
	s.mu.Unlock()

	if changed {
		offerLatest(s.updates, s.segments.Text())
	}
}

// SendAudio sends one chunk of PCM audio over the active stream.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closedSend
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stream already closed for sending")
	}
	if recvErr != nil {
		return fmt.Errorf("stream receive loop failed: %w", recvErr)
	}
	return s.stream.SendMsg(audioFrame(chunk))
}

// CloseAndCollect half-closes the stream and returns the final transcript
// once the server has finished replying.
func (s *Stream) CloseAndCollect(ctx context.Context) (string, error) {
	s.closeSend()
	defer s.shutdown()

	select {
	case <-s.recvDone:
	case <-ctx.Done():
		return s.segments.Final(), ctx.Err()
	}

	s.mu.Lock()
	recvErr := s.recvErr
	s.mu.Unlock()
	if recvErr != nil {
		return s.segments.Final(), recvErr
	}
	return s.segments.Final(), nil
}

// Cancel aborts the stream and closes the connection.
func (s *Stream) Cancel() error {
	s.closeSend()
	s.shutdown()
	<-s.recvDone
	return nil
}

func (s *Stream) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closedSend {
		s.closedSend = true
		_ = s.stream.CloseSend()
	}
}

func (s *Stream) shutdown() {
	s.cancel()
	_ = s.conn.Close()
}

// isInterimContinuation decides whether an interim update extends prior speech.
func isInterimContinuation(previous string, current string) bool {
	if previous == "" || current == "" || previous == current {
		return true
	}
	if strings.HasPrefix(current, previous) || strings.HasPrefix(previous, current) {
		return true
	}

	prevWords := strings.Fields(previous)
	currWords := strings.Fields(current)
	shorter := min(len(prevWords), len(currWords))
	if shorter == 0 {
		return true
	}
	return commonPrefixWords(prevWords, currWords)*2 >= shorter
}

func commonPrefixWords(left []string, right []string) int {
	limit := min(len(left), len(right))
	count := 0
	for i := 0; i < limit; i++ {
		if left[i] != right[i] {
			break
		}
		count++
	}
	return count
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
