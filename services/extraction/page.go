// Package extraction turns crawled pages and FAQ exports into ingestion sources.
package extraction

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services"
)

var (
	skipLinkRX      = regexp.MustCompile(`\[Skip to main content\][^\n]*\n?`)
	relatedTailRX   = regexp.MustCompile(`(?s)## Related articles.*$`)
	trailingSpaceRX = regexp.MustCompile(`[ \t]+\n`)
	blankLinesRX    = regexp.MustCompile(`\n{3,}`)
)

// Page is the text of one knowledge-base page
type Page struct {
	URL     string
	Title   string
	Content string
}

// Source converts the page for ingestion
func (p Page) Source() models.Source {
	return models.Source{SourceURL: p.URL, Title: p.Title, Content: p.Content}
}

// ExtractPage pulls the title and readable text out of an HTML document.
// The title comes from <title>, else the first h1. Text is collected from
// headings, paragraphs and list items under main/article, else the whole body.
func ExtractPage(url string, r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse html of %s: %w", url, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	sel := doc.Find("main, article")
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}

	var parts []string
	sel.Find("h1,h2,h3,p,li").Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})

	return Page{
		URL:     strings.TrimSpace(url),
		Title:   title,
		Content: CleanMarkdown(strings.Join(parts, "\n")),
	}, nil
}

// CleanMarkdown drops the skip-navigation link and everything from
// "## Related articles" on, then tidies whitespace.
func CleanMarkdown(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = skipLinkRX.ReplaceAllString(text, "")
	text = relatedTailRX.ReplaceAllString(text, "")
	text = trailingSpaceRX.ReplaceAllString(text, "\n")
	text = blankLinesRX.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

type crawledPage struct {
	Metadata struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"metadata"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

// LoadCrawledPage reads a crawler JSON dump ({metadata:{url,title}, markdown, html}).
// Markdown is preferred; html is extracted when markdown is absent.
func LoadCrawledPage(r io.Reader) (Page, error) {
	var cp crawledPage
	if err := json.NewDecoder(r).Decode(&cp); err != nil {
		return Page{}, fmt.Errorf("failed to decode crawled page: %w", err)
	}

	page := Page{
		URL:   strings.TrimSpace(cp.Metadata.URL),
		Title: strings.TrimSpace(cp.Metadata.Title),
	}
	switch {
	case strings.TrimSpace(cp.Markdown) != "":
		page.Content = CleanMarkdown(cp.Markdown)
	case strings.TrimSpace(cp.HTML) != "":
		extracted, err := ExtractPage(page.URL, strings.NewReader(cp.HTML))
		if err != nil {
			return Page{}, err
		}
		page.Content = extracted.Content
		if page.Title == "" {
			page.Title = extracted.Title
		}
	}

	if page.URL == "" || page.Title == "" || page.Content == "" {
		return Page{}, services.NewDomainError(services.ErrorTypeValidation, "crawled page is missing url, title or content", nil)
	}
	return page, nil
}
