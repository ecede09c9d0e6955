package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query: search_query=all:transformers</title>
  <entry>
    <id>http://arxiv.org/abs/2401.12345v1</id>
    <title>Attention Is
       Still All You Need</title>
    <summary>  We revisit attention
       mechanisms in depth.  </summary>
    <published>2024-01-22T18:00:00Z</published>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <category term="cs.LG"/>
    <category term="cs.CL"/>
    <link href="http://arxiv.org/abs/2401.12345v1" rel="alternate" type="text/html"/>
    <link href="http://arxiv.org/pdf/2401.12345v1" rel="related" type="application/pdf" title="pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2402.00001v2</id>
    <title>A Second Paper</title>
    <summary>Short summary.</summary>
    <published>2024-02-01T09:30:00Z</published>
    <author><name>Grace Hopper</name></author>
    <category term="cs.AI"/>
  </entry>
</feed>`

func TestParseFeed(t *testing.T) {
	papers, err := ParseFeed([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(papers))
	}

	p := papers[0]
	if p.ID != "2401.12345v1" {
		t.Errorf("expected id 2401.12345v1, got %q", p.ID)
	}
	if p.Title != "Attention Is Still All You Need" {
		t.Errorf("whitespace not collapsed in title: %q", p.Title)
	}
	if p.Summary != "We revisit attention mechanisms in depth." {
		t.Errorf("whitespace not collapsed in summary: %q", p.Summary)
	}
	if p.Authors != "Ada Lovelace, Alan Turing" {
		t.Errorf("unexpected authors: %q", p.Authors)
	}
	if p.Categories != "cs.LG, cs.CL" {
		t.Errorf("unexpected categories: %q", p.Categories)
	}
	if p.PDFURL != "http://arxiv.org/pdf/2401.12345v1" {
		t.Errorf("expected pdf link from feed, got %q", p.PDFURL)
	}
	if p.Published.Year() != 2024 || p.Published.Month() != 1 {
		t.Errorf("unexpected published date: %v", p.Published)
	}

	// Entry without a pdf link gets a constructed one.
	if papers[1].PDFURL != "https://arxiv.org/pdf/2402.00001v2.pdf" {
		t.Errorf("expected constructed pdf url, got %q", papers[1].PDFURL)
	}
}

func TestParseFeedEmpty(t *testing.T) {
	papers, err := ParseFeed([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if len(papers) != 0 {
		t.Errorf("expected no papers, got %d", len(papers))
	}
}

func TestParseFeedInvalidXML(t *testing.T) {
	if _, err := ParseFeed([]byte("not xml at all")); err == nil {
		t.Error("expected error for invalid XML")
	}
}

func TestSearch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		if r.URL.Query().Get("sortBy") != "submittedDate" {
			t.Errorf("expected sortBy=submittedDate, got %q", r.URL.Query().Get("sortBy"))
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	papers := client.Search(context.Background(), "cat:cs.LG", 10)
	if gotQuery != "cat:cs.LG" {
		t.Errorf("expected search_query cat:cs.LG, got %q", gotQuery)
	}
	if len(papers) != 2 {
		t.Errorf("expected 2 papers, got %d", len(papers))
	}
}

func TestSearchServerErrorYieldsNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	papers := client.Search(context.Background(), "cat:cs.LG", 10)
	if len(papers) != 0 {
		t.Errorf("expected no results for 503 response, got %d", len(papers))
	}
}

func TestSearchGarbageResponseYieldsNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not atom"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	papers := client.Search(context.Background(), "cat:cs.LG", 10)
	if len(papers) != 0 {
		t.Errorf("expected no results for an unparseable feed, got %d", len(papers))
	}
}
