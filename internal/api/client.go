package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IvyChu/owstats/internal/config"
	"github.com/valyala/fasthttp"
)

// ErrTransport covers the recoverable fetch failures: DNS resolution,
// connection/retry exhaustion, and responses without a parseable body.
// Callers back off on it rather than distinguishing the causes.
var ErrTransport = errors.New("stats provider unreachable")

type Client struct {
	baseURL string
	client  *fasthttp.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// FetchProfile performs one stateless profile lookup. Any response whose
// body parses as JSON is a payload, whatever the status code; the provider
// reports account-level problems ("Player not found", private profiles)
// inside the body.
func (c *Client) FetchProfile(ctx context.Context, platform, region, username string) (*Profile, error) {
	url := fmt.Sprintf("%s/%s/%s/%s/profile", c.baseURL, platform, region, username)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	setFixedHeaders(req)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrTransport, url, err)
	}

	var profile Profile
	if err := json.Unmarshal(resp.Body(), &profile); err != nil {
		return nil, fmt.Errorf("%w: status %d with unparseable body", ErrTransport, resp.StatusCode())
	}
	return &profile, nil
}

// Operational constants carried over from the previous scraper, not
// business logic.
func setFixedHeaders(req *fasthttp.Request) {
	req.Header.Set("User-Agent", "PythonTest 0.2")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Cookie", "__cfduid=df6937f525b58b9a98ac7d59a94d2c4761590714472")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
}

type Profile struct {
	Error            string            `json:"error"`
	Private          bool              `json:"private"`
	Name             string            `json:"name"`
	Icon             string            `json:"icon"`
	Endorsement      int               `json:"endorsement"`
	Rating           int               `json:"rating"`
	Ratings          []RoleRating      `json:"ratings"`
	CompetitiveStats *CompetitiveStats `json:"competitiveStats"`
}

type RoleRating struct {
	Level int    `json:"level"`
	Role  string `json:"role"`
}

type CompetitiveStats struct {
	Games *GameCounts `json:"games"`
}

type GameCounts struct {
	Played int `json:"played"`
	Won    int `json:"won"`
}
