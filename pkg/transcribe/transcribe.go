// Package transcribe turns shopkeeper voice notes into text before the
// turn enters the agent. Speech-to-text goes through the OpenAI audio
// API; the chat layer hands the resulting text to the session like any
// typed message.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openaisdk "github.com/openai/openai-go"
)

type Config struct {
	Model    string `envconfig:"MODEL" split_words:"true" default:"whisper-1"`
	Language string `envconfig:"LANGUAGE" split_words:"true"`
}

type Transcriber struct {
	client   *openaisdk.Client
	model    string
	language string
}

func New(client *openaisdk.Client, cfg Config) (*Transcriber, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("transcription model is required")
	}
	return &Transcriber{
		client:   client,
		model:    model,
		language: strings.TrimSpace(cfg.Language),
	}, nil
}

// Transcribe converts one voice note to text. Language is a hint, not
// a constraint; mixed Hindi-English notes are the normal case.
func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	params := openaisdk.AudioTranscriptionNewParams{
		File:  audio,
		Model: openaisdk.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = openaisdk.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("transcription is empty")
	}
	return text, nil
}
