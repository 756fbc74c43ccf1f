package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const maxPageBytes = 4 << 20

var crumbPattern = regexp.MustCompile(`"crumb"\s*:\s*"((?:[^"\\]|\\.)+)"`)

// rawGet issues a GET without crumb or throttle and returns the body, any
// cookies the upstream set, and the status. The cookie host answers 404 while
// still issuing the session, so status is left to the caller.
func (c *Client) rawGet(ctx context.Context, rawURL string, cookies []*http.Cookie, limit int64) ([]byte, []*http.Cookie, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.Cookies(), resp.StatusCode, nil
}

// sessionCookies visits a page that issues session cookies.
func (c *Client) sessionCookies(ctx context.Context, pageURL string) ([]*http.Cookie, error) {
	_, cookies, _, err := c.rawGet(ctx, pageURL, nil, maxPageBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch session cookie: %w", err)
	}
	if len(cookies) == 0 {
		return nil, errors.New("no session cookie issued")
	}
	return cookies, nil
}

// fetchCrumb calls the crumb endpoint on host using cookies.
func (c *Client) fetchCrumb(ctx context.Context, host string, cookies []*http.Cookie) (*Crumb, error) {
	body, _, status, err := c.rawGet(ctx, host+"/v1/test/getcrumb", cookies, 1024)
	if err != nil {
		return nil, fmt.Errorf("fetch crumb: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("crumb endpoint returned status %d", status)
	}
	value := strings.TrimSpace(string(body))
	if value == "" || strings.ContainsAny(value, "<>{} ") {
		return nil, errors.New("crumb endpoint returned no usable crumb")
	}
	return &Crumb{Value: value, Cookies: cookies}, nil
}

// cookieThenCrumb builds a strategy that visits cookieURL for a session and
// then asks host for a crumb.
func (c *Client) cookieThenCrumb(name, cookieURL, host string) CrumbStrategy {
	return CrumbStrategy{
		Name: name,
		Attempt: func(ctx context.Context) (*Crumb, error) {
			cookies, err := c.sessionCookies(ctx, cookieURL)
			if err != nil {
				return nil, err
			}
			return c.fetchCrumb(ctx, host, cookies)
		},
	}
}

// pageScrape extracts the crumb embedded in a quote page's inline data.
func (c *Client) pageScrape(symbol string) CrumbStrategy {
	return CrumbStrategy{
		Name: "page-scrape",
		Attempt: func(ctx context.Context) (*Crumb, error) {
			pageURL := fmt.Sprintf("%s/quote/%s", c.pageURL, url.PathEscape(symbol))
			body, cookies, status, err := c.rawGet(ctx, pageURL, nil, maxPageBytes)
			if err != nil {
				return nil, fmt.Errorf("fetch quote page: %w", err)
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("quote page returned status %d", status)
			}
			m := crumbPattern.FindSubmatch(body)
			if m == nil {
				return nil, errors.New("no crumb found in quote page")
			}
			// the match is a JSON string body, so \u002F and \/ escapes decode here
			var value string
			if err := json.Unmarshal([]byte(`"`+string(m[1])+`"`), &value); err != nil {
				value = string(m[1])
			}
			return &Crumb{Value: value, Cookies: cookies}, nil
		},
	}
}

// defaultStrategies returns the built-in strategies in the order they are tried.
func (c *Client) defaultStrategies() []CrumbStrategy {
	return []CrumbStrategy{
		c.cookieThenCrumb("fc-cookie", c.cookieURL, c.baseURL),
		c.cookieThenCrumb("finance-cookie", c.pageURL, c.query2URL),
		c.pageScrape("AAPL"),
	}
}
