package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/okian/chunisync/internal/domain/model"
)

// Client talks to the chunisync HTTP API.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

// BestEntry is the subset of a best-board entry the runner checks.
type BestEntry struct {
	Rank   int `json:"rank"`
	Record struct {
		Score      uint32          `json:"score"`
		PlayRating json.RawMessage `json:"play_rating"`
	} `json:"record"`
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	code, _, err := c.get(ctx, "/healthz")
	if err != nil {
		return err
	}
	if code != fasthttp.StatusOK {
		return fmt.Errorf("health check returned %d", code)
	}
	return nil
}

// PostJob submits one job.
func (c *Client) PostJob(ctx context.Context, job model.SyncJob) (Outcome, error) { //nolint:gocritic // hugeParam: jobs travel by value
	body, err := json.Marshal(job)
	if err != nil {
		return OutcomeFailed, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/sync")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return OutcomeFailed, err
	}
	switch code := resp.StatusCode(); code {
	case fasthttp.StatusAccepted:
		return OutcomeAccepted, nil
	case fasthttp.StatusOK:
		return OutcomeDuplicate, nil
	case fasthttp.StatusTooManyRequests:
		return OutcomeRejected, nil
	default:
		return OutcomeFailed, fmt.Errorf("sync returned %d: %s", code, resp.Body())
	}
}

// JobStatus fetches GET /v1/sync/{id}.
func (c *Client) JobStatus(ctx context.Context, id string) (model.JobStatus, error) {
	var st model.JobStatus
	code, body, err := c.get(ctx, "/v1/sync/"+url.PathEscape(id))
	if err != nil {
		return st, err
	}
	if code != fasthttp.StatusOK {
		return st, fmt.Errorf("status of %s returned %d", id, code)
	}
	err = json.Unmarshal(body, &st)
	return st, err
}

// Best fetches GET /v1/players/{name}/best.
func (c *Client) Best(ctx context.Context, player string, limit int) ([]BestEntry, error) {
	code, body, err := c.get(ctx, "/v1/players/"+url.PathEscape(player)+"/best?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	if code != fasthttp.StatusOK {
		return nil, fmt.Errorf("best of %s returned %d", player, code)
	}
	var out struct {
		Entries []BestEntry `json:"entries"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) get(ctx context.Context, path string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.do(ctx, req, resp); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.http.DoDeadline(req, resp, deadline)
}
