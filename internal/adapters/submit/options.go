package submit

import (
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/okian/chunisync/pkg/logger"
)

// Option applies a configuration option to the HTTPSubmitter.
type Option func(*HTTPSubmitter)

// WithRegion sets the region code sent with the status check.
func WithRegion(region string) Option {
	return func(s *HTTPSubmitter) {
		if region != "" {
			s.region = region
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSubmitter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRatePerMinute limits submissions. n <= 0 removes the limit.
func WithRatePerMinute(n int) Option {
	return func(s *HTTPSubmitter) {
		if n <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithClient replaces the fasthttp client.
func WithClient(c *fasthttp.Client) Option {
	return func(s *HTTPSubmitter) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *HTTPSubmitter) {
		if l != nil {
			s.logger = l
		}
	}
}
