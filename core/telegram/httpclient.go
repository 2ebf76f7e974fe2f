package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/telegram/sender"
)

// HTTPOptions tune the client used for Bot API calls. Zero values take defaults.
type HTTPOptions struct {
	// PollTimeout is how long getUpdates may hold a response open.
	PollTimeout time.Duration
	DialTimeout time.Duration
	// Retries is the number of extra attempts on transport failures.
	Retries int
	Backoff time.Duration
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.Retries <= 0 {
		o.Retries = 2
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	return o
}

// BuildHTTPClient returns a client whose deadlines outlast a long poll.
// Transport failures are retried here; Bot API errors are left to the sender pool.
func BuildHTTPClient(opts HTTPOptions) *http.Client {
	opts = opts.withDefaults()
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       time.Minute,
		TLSHandshakeTimeout:   opts.DialTimeout,
		ResponseHeaderTimeout: opts.PollTimeout + 10*time.Second,
	}
	return &http.Client{
		Timeout: opts.PollTimeout + 30*time.Second,
		Transport: &retryingTransport{
			next:    base,
			retries: opts.Retries,
			backoff: opts.Backoff,
		},
	}
}

type retryingTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

// rewind returns a request that can be sent again, or false when the body cannot be replayed.
func rewind(req *http.Request) (*http.Request, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Clone(req.Context()), true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, true
}

func (t *retryingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cur := req
	for attempt := 0; ; attempt++ {
		resp, err := t.next.RoundTrip(cur)
		if err == nil || attempt >= t.retries || !sender.ShouldRetry(err) {
			return resp, err
		}
		next, ok := rewind(req)
		if !ok {
			return nil, err
		}
		wait := t.backoff << attempt
		logger.LogEvent(ctx, logger.TWire, slog.LevelDebug, "http.retry",
			slog.Int("attempt", attempt+1),
			slog.String("err_kind", sender.ClassifyError(err)),
			slog.Duration("wait", wait),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		cur = next
	}
}
