// Package submit hands assembled payloads to the remote score tracker.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/okian/chunisync/pkg/logger"
	"github.com/okian/chunisync/pkg/metrics"
)

const (
	defaultRegion        = "jp2"
	defaultTimeout       = 10 * time.Second
	defaultRatePerMinute = 6

	resendURL = "https://chunirec.net/api/pttgr/resend?task_id="
)

// Receipt is what the tracker returns for an accepted payload.
type Receipt struct {
	TaskID string `json:"task_id"`
	// ResendURL is where the player confirms the import.
	ResendURL string `json:"resend_url,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// Submitter delivers a payload.
type Submitter interface {
	Submit(ctx context.Context, payload string) (Receipt, error)
}

type trackerStatus struct {
	Available      bool   `json:"available"`
	Maintenance    bool   `json:"maintenance"`
	MaintenanceMsg string `json:"maintenance_msg"`
}

type trackerResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

// HTTPSubmitter checks the tracker status and posts the payload as form data.
type HTTPSubmitter struct {
	baseURL string
	region  string
	timeout time.Duration
	client  *fasthttp.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewHTTPSubmitter creates a submitter for the tracker API at baseURL.
func NewHTTPSubmitter(baseURL string, opts ...Option) *HTTPSubmitter {
	s := &HTTPSubmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		region:  defaultRegion,
		timeout: defaultTimeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         defaultTimeout,
			WriteTimeout:        defaultTimeout,
			MaxIdleConnDuration: time.Minute,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/defaultRatePerMinute), 1),
		logger:  logger.Get().Named("submit"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit waits for the rate limiter, checks that the tracker accepts imports
// and posts the payload.
func (s *HTTPSubmitter) Submit(ctx context.Context, payload string) (Receipt, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		metrics.RecordSubmission(status, float64(time.Since(start).Milliseconds()))
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		status = "cancelled"
		return Receipt{}, err
	}
	if err := s.checkStatus(ctx); err != nil {
		status = "unavailable"
		metrics.RecordErrorByComponent("submit", "unavailable")
		return Receipt{}, err
	}

	receipt, err := s.post(ctx, payload)
	if err != nil {
		status = "rejected"
		metrics.RecordErrorByComponent("submit", "rejected")
		return Receipt{}, err
	}
	s.logger.Info(ctx, "payload submitted", logger.String("task_id", receipt.TaskID), logger.Int("length", len(payload)))
	return receipt, nil
}

func (s *HTTPSubmitter) checkStatus(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.baseURL + "/status.json?region=" + url.QueryEscape(s.region))
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := s.do(ctx, req, resp); err != nil {
		return fmt.Errorf("status check: %w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("status check returned %d: %w", resp.StatusCode(), ErrUnavailable)
	}

	var st trackerStatus
	if err := json.Unmarshal(resp.Body(), &st); err != nil {
		return fmt.Errorf("status check: %w: %w", ErrUnavailable, err)
	}
	if !st.Available {
		return fmt.Errorf("tracker not available: %w", ErrUnavailable)
	}
	if st.Maintenance {
		return fmt.Errorf("tracker down for maintenance %q: %w", st.MaintenanceMsg, ErrUnavailable)
	}
	return nil
}

func (s *HTTPSubmitter) post(ctx context.Context, payload string) (Receipt, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	defer fasthttp.ReleaseArgs(args)

	args.Set("data", payload)
	req.SetRequestURI(s.baseURL + "/gdhtts.json")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBody(args.QueryString())

	if err := s.do(ctx, req, resp); err != nil {
		return Receipt{}, fmt.Errorf("post payload: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return Receipt{}, fmt.Errorf("post payload returned %d: %w", resp.StatusCode(), ErrRejected)
	}

	var tr trackerResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return Receipt{}, fmt.Errorf("post payload: %w: %w", ErrRejected, err)
	}
	if tr.Status != "ok" {
		return Receipt{}, fmt.Errorf("tracker answered %q: %w", tr.Status, ErrRejected)
	}
	if tr.TaskID == "" {
		return Receipt{}, fmt.Errorf("tracker returned no task id: %w", ErrRejected)
	}
	return Receipt{TaskID: tr.TaskID, ResendURL: resendURL + url.QueryEscape(tr.TaskID)}, nil
}

func (s *HTTPSubmitter) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return s.client.DoDeadline(req, resp, deadline)
}

// NopSubmitter accepts every payload without sending it anywhere.
type NopSubmitter struct {
	logger logger.Logger
}

// NewNopSubmitter returns a submitter for dry runs.
func NewNopSubmitter() *NopSubmitter {
	return &NopSubmitter{logger: logger.Get().Named("submit")}
}

func (n *NopSubmitter) Submit(ctx context.Context, payload string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	metrics.RecordSubmission("dry_run", 0)
	n.logger.Debug(ctx, "dry run, payload not sent", logger.Int("length", len(payload)))
	return Receipt{DryRun: true}, nil
}
