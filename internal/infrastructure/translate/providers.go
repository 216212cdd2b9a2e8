package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"DigestHarvester/internal/translation"
)

// Provider names accepted in configuration.
const (
	GoogleWebName = "google"
	MyMemoryName  = "mymemory"
	GoogleAPIName = "googleapi"
)

var (
	errNoResult     = errors.New("no translation in response")
	errQuotaReached = errors.New("mymemory quota reached")
)

// GoogleWeb scrapes the result block of the Google Translate mobile page.
type GoogleWeb struct {
	client client
}

var _ translation.Provider = (*GoogleWeb)(nil)

// Name identifies the provider in logs and metrics.
func (g *GoogleWeb) Name() string { return GoogleWebName }

// Translate requests the mobile page and reads the translated block.
func (g *GoogleWeb) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body, err := g.client.get(ctx, url.Values{
		"sl": {sourceLang},
		"tl": {targetLang},
		"q":  {text},
	})
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	result := strings.TrimSpace(doc.Find("div.result-container, div.t0").First().Text())
	if result == "" {
		return "", errNoResult
	}
	return result, nil
}

// MyMemory calls the MyMemory JSON API.
type MyMemory struct {
	client client
	email  string
}

var _ translation.Provider = (*MyMemory)(nil)

// Name identifies the provider in logs and metrics.
func (m *MyMemory) Name() string { return MyMemoryName }

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus  json.Number `json:"responseStatus"`
	ResponseDetails string      `json:"responseDetails"`
	QuotaFinished   bool        `json:"quotaFinished"`
}

// Translate queries /get with the language pair.
func (m *MyMemory) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	query := url.Values{
		"q":        {text},
		"langpair": {sourceLang + "|" + targetLang},
	}
	if m.email != "" {
		query.Set("de", m.email)
	}

	body, err := m.client.get(ctx, query)
	if err != nil {
		return "", err
	}

	var resp myMemoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if resp.QuotaFinished {
		return "", errQuotaReached
	}
	if status := resp.ResponseStatus.String(); status != "" && status != "200" {
		return "", fmt.Errorf("mymemory status %s: %s", status, resp.ResponseDetails)
	}

	result := strings.TrimSpace(resp.ResponseData.TranslatedText)
	if result == "" {
		return "", errNoResult
	}
	if strings.HasPrefix(result, "MYMEMORY WARNING") {
		return "", errQuotaReached
	}
	return result, nil
}

// GoogleAPI calls the translate_a/single gtx endpoint.
type GoogleAPI struct {
	client client
}

var _ translation.Provider = (*GoogleAPI)(nil)

// Name identifies the provider in logs and metrics.
func (g *GoogleAPI) Name() string { return GoogleAPIName }

// Translate joins the translated segments of the first response element.
func (g *GoogleAPI) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body, err := g.client.get(ctx, url.Values{
		"client": {"gtx"},
		"sl":     {sourceLang},
		"tl":     {targetLang},
		"dt":     {"t"},
		"q":      {text},
	})
	if err != nil {
		return "", err
	}

	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload) == 0 {
		return "", errNoResult
	}

	segments, ok := payload[0].([]any)
	if !ok {
		return "", errNoResult
	}

	var sb strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			sb.WriteString(s)
		}
	}

	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "", errNoResult
	}
	return result, nil
}
