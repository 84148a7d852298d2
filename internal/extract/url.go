package extract

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxPromptChars bounds how much page text we send upstream. Completion
// cost scales with input size and event details sit near the top of a page
// anyway.
const maxPromptChars = 8000

// maxFetchBytes bounds how much of the response body we read at all.
const maxFetchBytes = 1 << 20 // 1 MiB

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ExtractFromURL fetches the page, reduces it to readable text, and runs
// the regular extraction path with the URL recorded as the source.
//
// Any fetch failure (network error, timeout, non-200) comes back as an
// error, which callers degrade to "no event detected" — a broken link in a
// watched channel must not take the ingestion pipeline down.
func (e *Extractor) ExtractFromURL(ctx context.Context, url string, ec Context) (*ExtractedEvent, error) {
	text, err := e.fetchReadableText(ctx, url)
	if err != nil {
		return nil, err
	}

	ec.SourceURL = url
	return e.Extract(ctx, text, ec)
}

func (e *Extractor) fetchReadableText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("extract: building fetch request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "calsync/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extract: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extract: fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("extract: reading %s: %w", url, err)
	}

	text := cleanHTML(string(body))
	if text == "" {
		return "", fmt.Errorf("extract: %s yielded no readable text", url)
	}

	return text, nil
}

// cleanHTML strips script/style blocks and tags, unescapes entities, and
// collapses whitespace, then truncates to the prompt limit.
func cleanHTML(raw string) string {
	text := scriptRe.ReplaceAllString(raw, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if len(text) > maxPromptChars {
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character and sends invalid UTF-8 upstream.
		cut := maxPromptChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
