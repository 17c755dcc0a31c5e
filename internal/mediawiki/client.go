package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"llbot/internal/textutil"
)

// Options configures a Client.
type Options struct {
	Endpoint  string // Action API URL, e.g. https://ku.wiktionary.org/w/api.php
	User      string
	Password  string
	UserAgent string
	Timeout   time.Duration
	// DryRun skips the edit request and logs it instead.
	DryRun bool
}

// Client talks to the MediaWiki Action API with a cookie session.
type Client struct {
	opts       Options
	httpClient *http.Client
	csrfToken  string
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a client. Call Login before writing as a registered user.
func NewClient(opts Options) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
		},
		maxRetries: 3,
		backoff:    2 * time.Second,
	}, nil
}

// Page is a fetched page revision.
type Page struct {
	Title  string
	Exists bool
	Text   string
	// BaseRevision is the timestamp of the fetched revision, sent back as
	// basetimestamp so that concurrent edits are detected.
	BaseRevision string
	// StartTimestamp is the server time of the fetch, sent back as
	// starttimestamp so that a deletion after the fetch is detected.
	StartTimestamp string
}

// --- Action API response types (formatversion=2) ---

type envelope struct {
	Error        *APIError       `json:"error,omitempty"`
	CurTimestamp string          `json:"curtimestamp,omitempty"`
	Query        json.RawMessage `json:"query,omitempty"`
	Login        *loginResult    `json:"login,omitempty"`
	Edit         *editResult     `json:"edit,omitempty"`
}

type tokensQuery struct {
	Tokens struct {
		LoginToken string `json:"logintoken"`
		CSRFToken  string `json:"csrftoken"`
	} `json:"tokens"`
}

type loginResult struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

type editResult struct {
	Result   string `json:"result"`
	NoChange bool   `json:"nochange,omitempty"`
	NewRevID int64  `json:"newrevid,omitempty"`
}

type pagesQuery struct {
	Pages []struct {
		Title     string `json:"title"`
		Missing   bool   `json:"missing,omitempty"`
		Invalid   bool   `json:"invalid,omitempty"`
		Revisions []struct {
			Timestamp string `json:"timestamp"`
			Slots     struct {
				Main struct {
					Content string `json:"content"`
				} `json:"main"`
			} `json:"slots"`
		} `json:"revisions"`
	} `json:"pages"`
}

// Login opens a bot session and caches the CSRF token.
func (c *Client) Login(ctx context.Context) error {
	loginToken, err := c.token(ctx, "login")
	if err != nil {
		return err
	}

	env, err := c.call(ctx, http.MethodPost, url.Values{
		"action":     {"login"},
		"lgname":     {c.opts.User},
		"lgpassword": {c.opts.Password},
		"lgtoken":    {loginToken},
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if env.Login == nil || env.Login.Result != "Success" {
		reason := "no login result"
		if env.Login != nil {
			reason = env.Login.Result + ": " + env.Login.Reason
		}
		return fmt.Errorf("login as %s: %s", c.opts.User, reason)
	}

	if c.csrfToken, err = c.token(ctx, "csrf"); err != nil {
		return err
	}

	log.Info().Str("user", c.opts.User).Str("endpoint", c.opts.Endpoint).Msg("Logged in")
	return nil
}

func (c *Client) token(ctx context.Context, kind string) (string, error) {
	env, err := c.call(ctx, http.MethodGet, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {kind},
	})
	if err != nil {
		return "", fmt.Errorf("fetch %s token: %w", kind, err)
	}

	var q tokensQuery
	if err := json.Unmarshal(env.Query, &q); err != nil {
		return "", fmt.Errorf("decode %s token: %w", kind, err)
	}

	token := q.Tokens.CSRFToken
	if kind == "login" {
		token = q.Tokens.LoginToken
	}
	if token == "" {
		return "", fmt.Errorf("fetch %s token: empty token", kind)
	}
	return token, nil
}

// Fetch returns the latest revision of title. A missing page is not an
// error: Exists is false.
func (c *Client) Fetch(ctx context.Context, title string) (Page, error) {
	env, err := c.call(ctx, http.MethodGet, url.Values{
		"action":       {"query"},
		"prop":         {"revisions"},
		"rvprop":       {"content|timestamp"},
		"rvslots":      {"main"},
		"titles":       {title},
		"curtimestamp": {"1"},
	})
	if err != nil {
		return Page{}, fmt.Errorf("fetch %q: %w", title, err)
	}

	var q pagesQuery
	if err := json.Unmarshal(env.Query, &q); err != nil {
		return Page{}, fmt.Errorf("decode page %q: %w", title, err)
	}

	page := Page{Title: title, StartTimestamp: env.CurTimestamp}
	if len(q.Pages) == 0 {
		return page, nil
	}
	p := q.Pages[0]
	if p.Missing || p.Invalid || len(p.Revisions) == 0 {
		return page, nil
	}

	page.Title = p.Title
	page.Exists = true
	page.Text = p.Revisions[0].Slots.Main.Content
	page.BaseRevision = p.Revisions[0].Timestamp
	return page, nil
}

// Write saves text as the new content of the fetched page. A revision or
// deletion newer than the fetch yields an error matching ErrEditConflict.
func (c *Client) Write(ctx context.Context, page Page, text, summary string) error {
	title := page.Title
	if c.opts.DryRun {
		log.Info().Str("title", title).Int("bytes", len(text)).Str("summary", summary).Msg("Dry run, edit skipped")
		return nil
	}

	if c.csrfToken == "" {
		token, err := c.token(ctx, "csrf")
		if err != nil {
			return err
		}
		c.csrfToken = token
	}

	env, err := c.call(ctx, http.MethodPost, url.Values{
		"action":         {"edit"},
		"title":          {title},
		"text":           {text},
		"summary":        {summary},
		"basetimestamp":  {page.BaseRevision},
		"starttimestamp": {page.StartTimestamp},
		"nocreate":       {"1"},
		"bot":            {"1"},
		"token":          {c.csrfToken},
	})
	if err != nil {
		return fmt.Errorf("edit %q: %w", title, err)
	}
	if env.Edit == nil || env.Edit.Result != "Success" {
		result := "no edit result"
		if env.Edit != nil {
			result = env.Edit.Result
		}
		return fmt.Errorf("edit %q: %s", title, result)
	}

	log.Debug().Str("title", title).Int64("revision", env.Edit.NewRevID).Bool("nochange", env.Edit.NoChange).Msg("Edit saved")
	return nil
}

// call sends one API request, retrying throttled and server errors. Failed
// transport on a POST is not retried, since the server may have applied it.
func (c *Client) call(ctx context.Context, method string, params url.Values) (*envelope, error) {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.backoff
			log.Warn().Int("attempt", attempt+1).Dur("backoff", backoff).Str("action", params.Get("action")).Msg("Retrying API call")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		env, retryable, err := c.doRequest(ctx, method, params)
		if err == nil {
			return env, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("api call failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, method string, params url.Values) (*envelope, bool, error) {
	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.opts.Endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.opts.Endpoint+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, method == http.MethodGet, fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, method == http.MethodGet, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("retryable error (status %d): %s", resp.StatusCode, textutil.Truncate(string(body), 300))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("API error (status %d): %s", resp.StatusCode, textutil.Truncate(string(body), 300))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("unmarshal response: %w", err)
	}
	if env.Error != nil {
		return nil, env.Error.Code == "maxlag" || env.Error.Code == "ratelimited", env.Error
	}

	return &env, false, nil
}
