package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

var libreLangs = map[string]string{
	"en":    "en",
	"ko":    "ko",
	"ja":    "ja",
	"zh":    "zh",
	"zh-CN": "zh",
	"es":    "es",
	"de":    "de",
	"ru":    "ru",
	"fr":    "fr",
	"it":    "it",
	"pt":    "pt",
	"auto":  "auto",
}

func libreLangCode(code, fallback string) string {
	if mapped, ok := libreLangs[code]; ok {
		return mapped
	}
	if mapped, ok := libreLangs[strings.ToLower(code)]; ok {
		return mapped
	}
	return fallback
}

// Endpoint is a LibreTranslate URL and optional API key.
type Endpoint struct {
	URL string
	Key string
}

// LibreTranslate translates through a (usually self-hosted) LibreTranslate
// server. The endpoint comes from ConfigPath ("url|key") when that file is
// readable, otherwise from Fallback.
type LibreTranslate struct {
	ConfigPath string
	Fallback   func() Endpoint
	Client     *http.Client
}

func NewLibreTranslate(configPath string, fallback func() Endpoint, client *http.Client) *LibreTranslate {
	if client == nil {
		client = http.DefaultClient
	}
	return &LibreTranslate{ConfigPath: configPath, Fallback: fallback, Client: client}
}

func (l *LibreTranslate) Name() string { return EngineLibre }

// ReadEndpointFile parses a "url|key" file. The key part is optional.
func ReadEndpointFile(path string) (Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Endpoint{}, err
	}
	content := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	url, key, _ := strings.Cut(content, "|")
	if url = strings.TrimSpace(url); url == "" {
		return Endpoint{}, fmt.Errorf("%s: empty URL", path)
	}
	key, _, _ = strings.Cut(key, "|")
	return Endpoint{URL: url, Key: strings.TrimSpace(key)}, nil
}

func (l *LibreTranslate) endpoint() Endpoint {
	if l.ConfigPath != "" {
		if ep, err := ReadEndpointFile(l.ConfigPath); err == nil {
			return ep
		}
	}
	if l.Fallback != nil {
		return l.Fallback()
	}
	return Endpoint{}
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (l *LibreTranslate) Translate(ctx context.Context, req Request) (string, error) {
	if req.Text == "" {
		return "", nil
	}
	source := "auto"
	if !req.AutoDetect {
		source = libreLangCode(req.SourceLang, "en")
	}
	target := libreLangCode(req.TargetLang, "ko")
	if source != "auto" && source == target {
		return req.Text, nil
	}

	ep := l.endpoint()
	body, err := json.Marshal(libreRequest{Q: req.Text, Source: source, Target: target, Format: "text", APIKey: ep.Key})
	if err != nil {
		return "", &Error{Engine: EngineLibre, Kind: KindTransport, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Engine: EngineLibre, Kind: KindTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if isConnectionError(err) {
			return "", &Error{Engine: EngineLibre, Kind: KindConnection, Err: err}
		}
		return "", &Error{Engine: EngineLibre, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &Error{Engine: EngineLibre, Kind: KindHTTPStatus, Status: resp.StatusCode}
	}

	var out libreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Engine: EngineLibre, Kind: KindTransport, Err: fmt.Errorf("parse response: %w", err)}
	}
	return out.TranslatedText, nil
}
