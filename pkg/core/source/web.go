package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"goldpipe/pkg/core/preset"
	"goldpipe/pkg/core/stage"
)

// WebSource fetches documents over HTTP and extracts their readable text.
type WebSource struct {
	client *http.Client
}

func NewWebSource() *WebSource {
	return &WebSource{client: &http.Client{Timeout: 30 * time.Second}}
}

func (w *WebSource) Fetch(ctx context.Context, desc preset.SourceDescriptor) ([]stage.Document, error) {
	var docs []stage.Document
	for _, url := range desc.URLs {
		text, err := w.fetchOne(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
		}
		docs = append(docs, stage.Document{ID: slugify(url), Text: text})
	}
	return docs, nil
}

func (w *WebSource) fetchOne(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "goldpipe/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer").Remove()

	var sb strings.Builder
	doc.Find("h1, h2, h3, h4, p, li, td, th").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			sb.WriteString(t)
			sb.WriteString("\n")
		}
	})
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text")
	}
	return text, nil
}

func slugify(url string) string {
	s := strings.TrimPrefix(url, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, s)
	return strings.Trim(s, "-")
}
