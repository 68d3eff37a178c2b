// Package nlp provides the language detection and person-name recognition
// capability used by the scanner.
//
// Language detection runs in process. Name recognition is delegated to an
// NER sidecar over HTTP that hosts one model per supported language; the
// model is picked from a small closed set by the detected language tag.
package nlp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
)

// Models served by the sidecar.
const (
	ModelEnglish   = "en_core_web_md"
	ModelNorwegian = "nb_core_news_lg"

	// DefaultModel is used for every language without a dedicated model.
	DefaultModel = ModelEnglish
)

// models maps ISO 639-1 tags to the model tuned for that language.
var models = map[string]string{
	"en": ModelEnglish,
	"nb": ModelNorwegian,
	"nn": ModelNorwegian,
	"no": ModelNorwegian,
}

// ModelFor returns the model for a language tag, or DefaultModel.
func ModelFor(tag string) string {
	if m, ok := models[strings.ToLower(tag)]; ok {
		return m
	}
	return DefaultModel
}

// Recognizer finds person names in text.
type Recognizer interface {
	FindPersons(ctx context.Context, text string) ([]string, error)
}

// EntityRecognizer is the capability consumed by the scanner.
type EntityRecognizer interface {
	// DetectLanguage returns an ISO 639-1 tag, or "" when undetermined.
	DetectLanguage(ctx context.Context, text string) string
	// Model returns the recognizer for a model name.
	Model(name string) Recognizer
}

// Config configures an Engine.
type Config struct {
	// SidecarURL is the base URL of the NER sidecar, e.g.
	// "http://localhost:8001". Empty disables name recognition.
	SidecarURL string
	Timeout    time.Duration
}

// Engine is the default EntityRecognizer.
type Engine struct {
	client *Client

	mu     sync.Mutex
	byName map[string]Recognizer
	warned sync.Once
}

// New returns an Engine.
func New(cfg Config) *Engine {
	e := &Engine{byName: make(map[string]Recognizer)}
	if cfg.SidecarURL != "" {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		e.client = NewClient(cfg.SidecarURL, &http.Client{Timeout: timeout})
	}
	return e
}

// DetectLanguage implements EntityRecognizer.
func (e *Engine) DetectLanguage(_ context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return whatlanggo.Detect(text).Lang.Iso6391()
}

// Model implements EntityRecognizer. Recognizers are created once per model.
func (e *Engine) Model(name string) Recognizer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.byName[name]; ok {
		return r
	}
	var r Recognizer
	if e.client == nil {
		e.warned.Do(func() {
			slog.Warn("nlp: no NER sidecar configured, person names will not be detected")
		})
		r = noopRecognizer{}
	} else {
		r = &sidecarRecognizer{client: e.client, model: name}
	}
	e.byName[name] = r
	return r
}

type noopRecognizer struct{}

func (noopRecognizer) FindPersons(context.Context, string) ([]string, error) { return nil, nil }

type sidecarRecognizer struct {
	client *Client
	model  string
}

func (r *sidecarRecognizer) FindPersons(ctx context.Context, text string) ([]string, error) {
	return r.client.Persons(ctx, r.model, text)
}
