// Package bibleapi fetches passages from a bible-api.com compatible endpoint.
package bibleapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
)

type (
	Client struct {
		baseURL string
		http    *http.Client
	}

	verseResponse struct {
		BookID  string `json:"book_id"`
		Chapter int    `json:"chapter"`
		Verse   int    `json:"verse"`
		Text    string `json:"text"`
	}

	passageResponse struct {
		Reference string          `json:"reference"`
		Verses    []verseResponse `json:"verses"`
		Text      string          `json:"text"`
		Error     string          `json:"error"`
	}
)

var _ bible.Provider = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	timeout := conf.Bible.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(conf.Bible.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// passagePath renders a reference the way the API expects it: `john+3:16-18`.
func passagePath(ref bible.Reference) string {
	name := ref.Book
	if b, ok := bible.LookupBook(ref.Book); ok {
		name = b.Name
	}
	path := fmt.Sprintf("%s+%d", strings.ToLower(name), ref.Chapter)
	if ref.VerseStart > 0 {
		path += fmt.Sprintf(":%d", ref.VerseStart)
		if ref.VerseEnd > ref.VerseStart {
			path += fmt.Sprintf("-%d", ref.VerseEnd)
		}
	}
	return url.PathEscape(path)
}

func (c *Client) Passage(ctx context.Context, translation string, ref bible.Reference) (bible.Passage, error) {
	u := fmt.Sprintf("%s/%s?translation=%s", c.baseURL, passagePath(ref), url.QueryEscape(translation))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return bible.Passage{}, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return bible.Passage{}, errors.Wrap(err, "calling bible api")
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return bible.Passage{}, bible.ErrNotFound
	case res.StatusCode >= http.StatusBadRequest:
		return bible.Passage{}, errors.Errorf("bible api: unexpected status %d", res.StatusCode)
	}

	var body passageResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return bible.Passage{}, errors.Wrap(err, "decoding bible api response")
	}
	if body.Error != "" {
		return bible.Passage{}, bible.ErrNotFound
	}

	p := bible.Passage{
		Text:   strings.TrimSpace(body.Text),
		Verses: make([]bible.Verse, 0, len(body.Verses)),
	}
	for _, v := range body.Verses {
		p.Verses = append(p.Verses, bible.Verse{
			Book:    ref.Book,
			Chapter: v.Chapter,
			Verse:   v.Verse,
			Text:    strings.TrimSpace(v.Text),
		})
	}
	return p, nil
}
