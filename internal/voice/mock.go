package voice

import "context"

// MockTranscriber returns scripted results; used in tests and local dev
// when no provider is configured.
type MockTranscriber struct {
	Result Transcription
	Err    error
	Calls  int
}

func (m *MockTranscriber) Transcribe(_ context.Context, _ []byte, language string) (Transcription, error) {
	m.Calls++
	if m.Err != nil {
		return Transcription{}, m.Err
	}
	res := m.Result
	if res.Language == "" {
		res.Language = language
	}
	return res, nil
}
