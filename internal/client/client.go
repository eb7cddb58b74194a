// Package client implements the HTTP consumers of the en-words API: the word
// catalog loader, the quiz-result and checked-word submitters, and the stats
// reader used by the admin view.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"en-words-service/internal/domain"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
}

// flexID tolerates the API serializing ids as either strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type apiTranslation struct {
	WordJp string `json:"wordJp"`
}

type apiGroup struct {
	ID   flexID `json:"id"`
	Name string `json:"name"`
}

type apiWord struct {
	ID             flexID           `json:"id"`
	WordEn         string           `json:"wordEn"`
	JpTranslations []apiTranslation `json:"jpTranslations"`
	WordGroup      *apiGroup        `json:"wordGroup"`
	Checked        bool             `json:"checked"`
}

// FetchWords loads the catalog and normalizes it into Words. Entries without a
// term or a usable first translation are dropped silently; a missing id falls
// back to the term itself.
func (c *Client) FetchWords(ctx context.Context) ([]domain.Word, error) {
	var payload struct {
		Words []apiWord `json:"words"`
	}
	if err := c.getJSON(ctx, "/words", &payload); err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}

	words := make([]domain.Word, 0, len(payload.Words))
	for _, entry := range payload.Words {
		if entry.WordEn == "" {
			continue
		}
		meaning := ""
		if len(entry.JpTranslations) > 0 {
			meaning = entry.JpTranslations[0].WordJp
		}
		if meaning == "" {
			continue
		}

		word := domain.Word{
			ID:      string(entry.ID),
			Term:    entry.WordEn,
			Meaning: meaning,
			Checked: entry.Checked,
		}
		if word.ID == "" {
			word.ID = entry.WordEn
		}
		if entry.WordGroup != nil && entry.WordGroup.ID != "" {
			word.GroupID = string(entry.WordGroup.ID)
			word.GroupName = entry.WordGroup.Name
		}
		words = append(words, word)
	}
	return words, nil
}

// SubmitAttempts posts the attempt ledger in answer order and returns the
// number of results the server recorded.
func (c *Client) SubmitAttempts(ctx context.Context, attempts []domain.Attempt) (int, error) {
	body := struct {
		Results []domain.Attempt `json:"results"`
	}{Results: attempts}

	var response struct {
		Recorded int `json:"recorded"`
	}
	if err := c.postJSON(ctx, "/quiz-logs", body, &response); err != nil {
		return 0, fmt.Errorf("submit results: %w", err)
	}
	return response.Recorded, nil
}

// SubmitChecks replaces the server's checked-word set with checkedWordIDs.
func (c *Client) SubmitChecks(ctx context.Context, checkedWordIDs []string) (domain.CheckSync, error) {
	if checkedWordIDs == nil {
		checkedWordIDs = []string{}
	}
	body := struct {
		CheckedWordIDs []string `json:"checkedWordIds"`
	}{CheckedWordIDs: checkedWordIDs}

	var sync domain.CheckSync
	if err := c.postJSON(ctx, "/word-checks", body, &sync); err != nil {
		return domain.CheckSync{}, fmt.Errorf("submit word checks: %w", err)
	}
	return sync, nil
}

// FetchStats loads aggregate correct/incorrect counts for the admin table.
func (c *Client) FetchStats(ctx context.Context) ([]domain.WordStat, error) {
	var payload struct {
		Stats []struct {
			WordID    flexID `json:"wordId"`
			Correct   int    `json:"correct"`
			Incorrect int    `json:"incorrect"`
		} `json:"stats"`
	}
	if err := c.getJSON(ctx, "/quiz-stats", &payload); err != nil {
		return nil, fmt.Errorf("load quiz stats: %w", err)
	}

	stats := make([]domain.WordStat, 0, len(payload.Stats))
	for _, entry := range payload.Stats {
		stats = append(stats, domain.WordStat{
			WordID:    string(entry.WordID),
			Correct:   entry.Correct,
			Incorrect: entry.Incorrect,
		})
	}
	return stats, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
