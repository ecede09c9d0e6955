package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// Client queries the arXiv Atom API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://export.arxiv.org/api/query"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Atom feed structures for the arXiv query API.
type feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []entry  `xml:"entry"`
}

type entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Authors    []author   `xml:"author"`
	Categories []category `xml:"category"`
	Links      []link     `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

type category struct {
	Term string `xml:"term,attr"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

// Search fetches up to maxResults papers for an arXiv query string, newest
// submissions first. Timeouts, HTTP errors, and parse failures are logged
// and yield an empty result; they never propagate past this boundary.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []models.Paper {
	papers, err := c.fetch(ctx, query, maxResults)
	if err != nil {
		logger.Error("arXiv fetch failed, returning no results", "query", query, "error", err)
		return []models.Paper{}
	}
	return papers
}

func (c *Client) fetch(ctx context.Context, query string, maxResults int) ([]models.Paper, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build arXiv request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read arXiv response: %w", err)
	}

	return ParseFeed(body)
}

// ParseFeed decodes an arXiv Atom feed into papers. Entries that cannot be
// parsed are skipped rather than failing the whole feed.
func ParseFeed(data []byte) ([]models.Paper, error) {
	var f feed
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse arXiv feed: %w", err)
	}

	papers := make([]models.Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		id := extractID(e.ID)
		if id == "" {
			continue
		}

		names := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}

		cats := make([]string, 0, len(e.Categories))
		for _, c := range e.Categories {
			if c.Term != "" {
				cats = append(cats, c.Term)
			}
		}

		pdfURL := ""
		for _, l := range e.Links {
			if l.Title == "pdf" {
				pdfURL = l.Href
				break
			}
		}
		if pdfURL == "" {
			pdfURL = "https://arxiv.org/pdf/" + id + ".pdf"
		}

		published, err := time.Parse(time.RFC3339, e.Published)
		if err != nil {
			published = time.Time{}
		}

		papers = append(papers, models.Paper{
			ID:         id,
			Title:      collapseWhitespace(e.Title),
			Authors:    strings.Join(names, ", "),
			Summary:    collapseWhitespace(e.Summary),
			Categories: strings.Join(cats, ", "),
			PDFURL:     pdfURL,
			Published:  published,
		})
	}

	return papers, nil
}

// extractID pulls the bare paper id out of an abs URL like
// http://arxiv.org/abs/2401.12345v1.
func extractID(idURL string) string {
	idx := strings.LastIndex(idURL, "/abs/")
	if idx < 0 {
		return strings.TrimSpace(idURL)
	}
	return strings.TrimSpace(idURL[idx+len("/abs/"):])
}

// Titles and summaries in the feed carry hard line breaks and indentation.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
