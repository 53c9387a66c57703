package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLFetchesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer srv.Close()

	res, err := URL(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.HTML, "hello")
	assert.Equal(t, "text/html", res.ContentType)
}

func TestURLNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res, err := URL(context.Background(), srv.URL, nil)
	require.Error(t, err)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Message, "503")
	// The body is still returned for callers that want it.
	require.NotNil(t, res)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestURLRejectsInvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-url", nil)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "invalid URL", fetchErr.Message)
}

const samplePage = `<html><body>
<nav><a href="/home">Site navigation link here</a></nav>
<article><h2><a href="/a">First headline about something</a></h2></article>
<article><h2><a href="/b">Second headline about something</a></h2></article>
<article><h2><a href="/c">First headline about something</a></h2></article>
<article><h2><a href="/d">short</a></h2></article>
<footer><a href="/about">About this site and its authors</a></footer>
</body></html>`

func TestExtractHeadlinesDedupesAndFilters(t *testing.T) {
	headlines, err := ExtractHeadlines(samplePage, nil, 0)
	require.NoError(t, err)
	require.Len(t, headlines, 2)
	assert.Equal(t, "First headline about something", headlines[0].Text)
	assert.Equal(t, "/a", headlines[0].Href)
	assert.Equal(t, "Second headline about something", headlines[1].Text)
}

func TestExtractHeadlinesHonorsLimit(t *testing.T) {
	headlines, err := ExtractHeadlines(samplePage, nil, 1)
	require.NoError(t, err)
	assert.Len(t, headlines, 1)
}

func TestExtractHeadlinesSelectorOrder(t *testing.T) {
	page := `<html><body>
<div class="titleline"><a href="/hn">Aggregator headline number one</a></div>
<h3><a href="/other">Fallback selector should not win</a></h3>
</body></html>`

	headlines, err := ExtractHeadlines(page, nil, 0)
	require.NoError(t, err)
	require.Len(t, headlines, 1)
	assert.Equal(t, "Aggregator headline number one", headlines[0].Text)
}

func TestExtractHeadlinesNoMatch(t *testing.T) {
	headlines, err := ExtractHeadlines("<html><body><p>plain text only</p></body></html>", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, headlines)
}

func TestExtractMainText(t *testing.T) {
	page := `<html><body>
<nav>menu items</nav>
<main>  The main story.  </main>
<footer>copyright</footer>
</body></html>`

	text, err := ExtractMainText(page, DefaultTextSelectors())
	require.NoError(t, err)
	assert.Equal(t, "The main story.", text)
}
