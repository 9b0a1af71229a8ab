package translate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// DefaultDeepLURL is the DeepL free-tier endpoint.
const DefaultDeepLURL = "https://api-free.deepl.com/v2/translate"

var deeplLangs = map[string]string{
	"ko":    "KO",
	"en":    "EN",
	"ja":    "JA",
	"zh-CN": "ZH",
	"zh":    "ZH",
	"ru":    "RU",
	"fr":    "FR",
	"es":    "ES",
	"de":    "DE",
	"pt":    "PT",
	"it":    "IT",
	"nl":    "NL",
	"pl":    "PL",
}

// deeplLangCode converts a settings language code to DeepL's code set.
// Unmapped codes fall back to EN.
func deeplLangCode(code string) string {
	if mapped, ok := deeplLangs[code]; ok {
		return mapped
	}
	if mapped, ok := deeplLangs[strings.ToLower(code)]; ok {
		return mapped
	}
	return "EN"
}

// DeepL translates through the DeepL REST API. The credential file is read on
// every call so a key added while the app runs is picked up.
type DeepL struct {
	KeyPath string
	URL     string
	Client  *http.Client
}

func NewDeepL(keyPath, url string, client *http.Client) *DeepL {
	if url == "" {
		url = DefaultDeepLURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DeepL{KeyPath: keyPath, URL: url, Client: client}
}

func (d *DeepL) Name() string { return EngineDeepL }

type deeplRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

type deeplResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

func (d *DeepL) Translate(ctx context.Context, req Request) (string, error) {
	if req.Text == "" {
		return "", nil
	}
	apiKey, err := readDeepLKey(d.KeyPath)
	if err != nil {
		return "", &Error{Engine: EngineDeepL, Kind: KindMissingCredential, Err: err}
	}

	target := deeplLangCode(req.TargetLang)
	source := ""
	if !req.AutoDetect {
		source = deeplLangCode(req.SourceLang)
	}
	if source != "" && source == target {
		return req.Text, nil
	}

	body, err := json.Marshal(deeplRequest{Text: []string{req.Text}, TargetLang: target, SourceLang: source})
	if err != nil {
		return "", &Error{Engine: EngineDeepL, Kind: KindTransport, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Engine: EngineDeepL, Kind: KindTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+apiKey)

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Engine: EngineDeepL, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &Error{Engine: EngineDeepL, Kind: KindHTTPStatus, Status: resp.StatusCode}
	}

	var out deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Engine: EngineDeepL, Kind: KindTransport, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(out.Translations) == 0 {
		return "", &Error{Engine: EngineDeepL, Kind: KindEmptyResult}
	}
	return out.Translations[0].Text, nil
}

// readDeepLKey returns the first non-empty line of the credential file.
func readDeepLKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff")); line != "" {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errors.New("credential file is empty")
}
