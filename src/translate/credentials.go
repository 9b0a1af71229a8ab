package translate

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// WriteDeepLKey stores key as the only line of the DeepL credential file.
func WriteDeepLKey(path, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("DeepL API key is empty")
	}
	if strings.ContainsAny(key, "\r\n") {
		return errors.New("DeepL API key must be a single line")
	}
	return writeCredential(path, key)
}

// WriteEndpointFile stores ep in the "url|key" form ReadEndpointFile parses.
func WriteEndpointFile(path string, ep Endpoint) error {
	raw := strings.TrimSpace(ep.URL)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid LibreTranslate URL %q", ep.URL)
	}
	key := strings.TrimSpace(ep.Key)
	if strings.ContainsAny(key, "|\r\n") {
		return errors.New("LibreTranslate API key must be a single line without '|'")
	}
	line := raw
	if key != "" {
		line += "|" + key
	}
	return writeCredential(path, line)
}

func writeCredential(path, line string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
