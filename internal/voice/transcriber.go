package voice

import (
	"context"
	"fmt"
)

// Transcription is the speech-to-text result for one voice message.
type Transcription struct {
	Text       string
	Confidence float64
	Language   string
}

// Transcriber is the speech-to-text collaborator. Provider implementations
// live outside this service; the router only needs this call.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Transcription, error)
}

// TranscriptionError marks a voice-pipeline failure. The router surfaces it
// to the sender as an error event and broadcasts nothing.
type TranscriptionError struct {
	Provider string
	Detail   string
}

func (e *TranscriptionError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("transcription failed: %s", e.Detail)
	}
	return fmt.Sprintf("transcription failed (%s): %s", e.Provider, e.Detail)
}
