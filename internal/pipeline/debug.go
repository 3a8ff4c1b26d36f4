package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
)

// answerDumpPath names a per-answer WAV under <state>/debug, creating the
// directory on demand.
func answerDumpPath(now time.Time) (string, error) {
	stateDir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(stateDir, "debug")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	return filepath.Join(dir, "answer-"+now.Format("20060102-150405.000")+".wav"), nil
}

// writeDebugAudio keeps the captured answer audio when debug.enable_audio_dump is set.
func (t *Transcriber) writeDebugAudio(rawPCM []byte) {
	if !t.cfg.Debug.EnableAudioDump || len(rawPCM) == 0 {
		return
	}
	path, err := answerDumpPath(time.Now())
	if err == nil {
		clip := audio.PCMFromBytes(rawPCM, audio.CaptureSampleRate)
		err = os.WriteFile(path, audio.EncodeWAV(clip), 0o600)
	}
	if err != nil {
		t.logWarn(fmt.Sprintf("unable to write answer audio dump: %v", err))
	}
}
