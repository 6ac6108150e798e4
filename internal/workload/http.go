package workload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"steadyrate/internal/config"
	"steadyrate/internal/pool"
	"steadyrate/internal/stats"
	"steadyrate/internal/templating"
)

// maxCheckedBody caps how much of a response is buffered for body checks.
const maxCheckedBody = 4 << 20

// Workload runs one iteration body on a caller and describes what happened.
// It never records anything itself.
type Workload interface {
	Iterate(ctx context.Context, c *pool.Caller) stats.Outcome
}

// Func adapts a plain function to Workload.
type Func func(ctx context.Context, c *pool.Caller) stats.Outcome

func (f Func) Iterate(ctx context.Context, c *pool.Caller) stats.Outcome {
	return f(ctx, c)
}

type header struct {
	key   string
	value *templating.Text
}

// HTTP issues the configured request and evaluates checks on the response.
type HTTP struct {
	method   string
	url      *templating.Text
	body     *templating.Text
	headers  []header
	checks   []Check
	readBody bool
}

// NewHTTP compiles the request templates once.
func NewHTTP(req config.Request, checks []config.Check) (*HTTP, error) {
	engine := templating.NewEngine()

	u, err := engine.Compile("url", req.URL)
	if err != nil {
		return nil, err
	}
	b, err := engine.Compile("body", req.Body)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	headers := make([]header, 0, len(keys))
	for _, k := range keys {
		v, err := engine.Compile("header "+k, req.Headers[k])
		if err != nil {
			return nil, err
		}
		headers = append(headers, header{key: k, value: v})
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	return &HTTP{
		method:   method,
		url:      u,
		body:     b,
		headers:  headers,
		checks:   ChecksFromConfig(checks),
		readBody: needsBody(checks),
	}, nil
}

func (h *HTTP) build(ctx context.Context, data templating.Data) (*http.Request, error) {
	target, err := h.url.Render(data)
	if err != nil {
		return nil, fmt.Errorf("render url: %w", err)
	}
	var body io.Reader
	switch {
	case !h.body.Static():
		s, err := h.body.Render(data)
		if err != nil {
			return nil, fmt.Errorf("render body: %w", err)
		}
		body = strings.NewReader(s)
	case h.body.Raw() != "":
		body = strings.NewReader(h.body.Raw())
	}

	req, err := http.NewRequestWithContext(ctx, h.method, target, body)
	if err != nil {
		return nil, err
	}
	for _, hd := range h.headers {
		v, err := hd.value.Render(data)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", hd.key, err)
		}
		req.Header.Set(hd.key, v)
	}
	return req, nil
}

func (h *HTTP) Iterate(ctx context.Context, c *pool.Caller) stats.Outcome {
	start := time.Now()
	out := stats.Outcome{VU: c.ID, Iteration: c.NextIteration(), Timestamp: start}

	req, err := h.build(ctx, templating.NewData(c.ID, out.Iteration))
	if err != nil {
		out.Status = stats.StatusError
		out.Error = err.Error()
		out.Duration = time.Since(start)
		return out
	}

	out.Requested = true
	resp, err := c.Client.Do(req)
	if err != nil {
		return failed(ctx, out, err, start)
	}

	var buf []byte
	var n int64
	if h.readBody {
		buf, err = io.ReadAll(io.LimitReader(resp.Body, maxCheckedBody))
		n = int64(len(buf))
		if err == nil {
			var rest int64
			rest, err = io.Copy(io.Discard, resp.Body)
			n += rest
		}
	} else {
		n, err = io.Copy(io.Discard, resp.Body)
	}
	resp.Body.Close()

	out.RequestDuration = time.Since(start)
	out.StatusCode = resp.StatusCode
	out.Bytes = n
	if err != nil {
		return failed(ctx, out, fmt.Errorf("read body: %w", err), start)
	}

	out.RequestFailed = resp.StatusCode >= http.StatusBadRequest
	results, ok := runChecks(h.checks, Response{Status: resp.StatusCode, Body: buf, Duration: out.RequestDuration})
	out.Checks = results

	switch {
	case out.RequestFailed:
		out.Status = stats.StatusFailure
		out.Error = "http " + strconv.Itoa(resp.StatusCode)
	case !ok:
		out.Status = stats.StatusFailure
	default:
		out.Status = stats.StatusSuccess
	}
	out.Duration = time.Since(start)
	return out
}

func failed(ctx context.Context, out stats.Outcome, err error, start time.Time) stats.Outcome {
	out.RequestFailed = true
	out.Status = stats.StatusError
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		out.Status = stats.StatusCancelled
	}
	out.Error = errorClass(err)
	if out.RequestDuration == 0 {
		out.RequestDuration = time.Since(start)
	}
	out.Duration = time.Since(start)
	return out
}

// errorClass strips request-specific detail so the error summary groups well.
func errorClass(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return "request timeout"
		}
		return ue.Err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timeout"
	}
	return err.Error()
}
