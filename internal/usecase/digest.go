package usecase

import (
	"bytes"
	"fmt"
	"html/template"

	"DigestHarvester/internal/domain"
)

var digestTemplate = template.Must(template.New("digest").Parse(`<div class="date-header">📅 {{.Digest.DisplayDate}}</div>
<div class="news-container">
  <div class="header">
    <h1>Daily Current Affairs Digest</h1>
  </div>
{{- range .Digest.Items}}
  <div class="news-card">
    <div class="topic-number">#{{.Number}}</div>
    <div class="content-wrapper">
      <div class="lang-section source">
        <span class="lang-label">English</span>
        <h2>{{.Article.OriginalTitle}}</h2>
        <p>{{.Article.OriginalParagraph}}</p>
      </div>
      <div class="lang-section target">
        <span class="lang-label">{{$.LanguageName}}</span>
        <h2>{{.Article.TranslatedTitle}}</h2>
        <p>{{.Article.TranslatedParagraph}}</p>
      </div>
    </div>
  </div>
{{- end}}
</div>
<style>
  .date-header { text-align: center; padding: 1rem; font-weight: 600; }
  .news-container { max-width: 800px; margin: 0 auto; padding: 1rem; }
  .header h1 { text-align: center; margin-bottom: 1.5rem; }
  .news-card { border-radius: 12px; box-shadow: 0 2px 8px rgba(0,0,0,.1); margin-bottom: 1.5rem; padding: 1rem; }
  .topic-number { font-weight: 700; color: #1a73e8; }
  .lang-section { padding: .75rem 0; }
  .lang-section.target { border-top: 1px solid #eee; }
  .lang-label { font-size: .8rem; text-transform: uppercase; color: #666; }
</style>
`))

type digestView struct {
	Digest       domain.Digest
	LanguageName string
}

// RenderDigest produces the HTML body stored with the news row. Article text
// is escaped by html/template.
func RenderDigest(digest domain.Digest, languageName string) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, digestView{Digest: digest, LanguageName: languageName}); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

// DigestTitle is the headline used for the news row and the notification.
func DigestTitle(digest domain.Digest, languageName string) string {
	return fmt.Sprintf("%s Current Affairs Summary in %s", digest.DisplayDate(), languageName)
}

// DigestImage is the image reference stored with the news row.
func DigestImage(digest domain.Digest) string {
	return digest.DisplayDate() + " Summary.jpg"
}
