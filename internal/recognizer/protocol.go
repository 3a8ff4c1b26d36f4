// Package recognizer streams PCM audio to a gRPC speech recognizer and
// assembles the transcript from interim and final results.
//
// The wire protocol is one bidirectional stream of google.protobuf.Struct
// frames: the client sends a config frame, then audio frames; the server
// replies with result frames.
package recognizer

import (
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rehearse.recognizer.v1.Recognizer"

const streamMethod = "StreamingRecognize"

var streamDesc = grpc.StreamDesc{
	StreamName:    streamMethod,
	ServerStreams: true,
	ClientStreams: true,
}

// StreamHandler serves one recognition stream.
type StreamHandler func(stream grpc.ServerStream) error

// RegisterServer exposes handler as the recognizer service on s.
func RegisterServer(s grpc.ServiceRegistrar, handler StreamHandler) {
	desc := streamDesc
	desc.Handler = func(_ any, stream grpc.ServerStream) error { return handler(stream) }
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{desc},
		Metadata:    "rehearse/recognizer/v1/recognizer.proto",
	}, struct{}{})
}

// SpeechPhrase is one vocabulary boost phrase in request-ready form.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

// Result is one recognition hypothesis from a result frame.
type Result struct {
	Transcript string
	IsFinal    bool
	Stability  float64
}

func configFrame(cfg StreamConfig) (*structpb.Struct, error) {
	phrases := make([]any, 0, len(cfg.SpeechPhrases))
	for _, phrase := range cfg.SpeechPhrases {
		text := strings.TrimSpace(phrase.Phrase)
		if text == "" {
			continue
		}
		phrases = append(phrases, map[string]any{"phrase": text, "boost": float64(phrase.Boost)})
	}

	frame, err := structpb.NewStruct(map[string]any{
		"config": map[string]any{
			"encoding":              "LINEAR_PCM",
			"sample_rate_hertz":     float64(16000),
			"audio_channel_count":   float64(1),
			"language_code":         cfg.LanguageCode,
			"model":                 strings.TrimSpace(cfg.Model),
			"automatic_punctuation": cfg.AutomaticPunctuation,
			"interim_results":       true,
			"phrases":               phrases,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build config frame: %w", err)
	}
	return frame, nil
}

func audioFrame(chunk []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"audio": structpb.NewStringValue(base64.StdEncoding.EncodeToString(chunk)),
	}}
}

// ResultsFrame encodes results the way a recognizer server replies.
func ResultsFrame(results ...Result) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(results))
	for _, r := range results {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"transcript": structpb.NewStringValue(r.Transcript),
			"is_final":   structpb.NewBoolValue(r.IsFinal),
			"stability":  structpb.NewNumberValue(r.Stability),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"results": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// ParseResults extracts results from a server frame. Malformed entries are skipped.
func ParseResults(frame *structpb.Struct) []Result {
	list := frame.GetFields()["results"].GetListValue().GetValues()
	results := make([]Result, 0, len(list))
	for _, value := range list {
		fields := value.GetStructValue().GetFields()
		if fields == nil {
			continue
		}
		results = append(results, Result{
			Transcript: fields["transcript"].GetStringValue(),
			IsFinal:    fields["is_final"].GetBoolValue(),
			Stability:  fields["stability"].GetNumberValue(),
		})
	}
	return results
}

// DecodeAudio returns the PCM payload of a client audio frame.
func DecodeAudio(frame *structpb.Struct) ([]byte, bool) {
	value, ok := frame.GetFields()["audio"]
	if !ok {
		return nil, false
	}
	pcm, err := base64.StdEncoding.DecodeString(value.GetStringValue())
	if err != nil {
		return nil, false
	}
	return pcm, true
}

// IsConfig reports whether frame is the stream's opening config frame.
func IsConfig(frame *structpb.Struct) bool {
	return frame.GetFields()["config"].GetStructValue() != nil
}
