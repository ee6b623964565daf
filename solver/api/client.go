package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"karuta-solver/solver/agent"
)

// TokenHeader carries the team token on every request.
const TokenHeader = "procon-token"

// StatusError is returned for any non-2xx reply; the body usually names the
// server-side reason (bad token, outside answer time, malformed input).
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, strings.TrimSpace(e.Body))
}

// Client talks to the match server. It does not retry.
type Client struct {
	cfg  apiConfig
	http *http.Client
}

// NewFromEnv builds a client from ENDPOINT, TOKEN and the optional tuning vars.
func NewFromEnv() (*Client, error) {
	cfg, err := resolveAPIConfig()
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

func New(baseURL, token string) *Client {
	cfg := apiConfig{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Token:       token,
		HeaderName:  TokenHeader,
		Timeout:     10 * time.Second,
		Concurrency: 4,
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.cfg.HeaderName, c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func (c *Client) GetMatch(ctx context.Context) (agent.Match, error) {
	var m agent.Match
	data, err := c.do(ctx, http.MethodGet, "/match", nil)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode match: %w", err)
	}
	return m, nil
}

// GetProblem returns the round currently open for answers.
func (c *Client) GetProblem(ctx context.Context) (agent.Problem, error) {
	var p agent.Problem
	data, err := c.do(ctx, http.MethodGet, "/problem", nil)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode problem: %w", err)
	}
	return p, nil
}

// GetChunks asks for the first n chunks of the open round and downloads
// them. The server records the count, so callers should ask for the smallest
// n first. Files are kept under saveDir when it is set.
func (c *Client) GetChunks(ctx context.Context, n int, saveDir string) ([]agent.Chunk, error) {
	data, err := c.do(ctx, http.MethodPost, "/problem/chunks?n="+strconv.Itoa(n), nil)
	if err != nil {
		return nil, err
	}
	list := gjson.GetBytes(data, "chunks")
	if !list.IsArray() {
		return nil, fmt.Errorf("decode chunks: no chunks array in %q", data)
	}
	var names []string
	list.ForEach(func(_, v gjson.Result) bool {
		names = append(names, v.String())
		return true
	})

	chunks := make([]agent.Chunk, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, name := range names {
		g.Go(func() error {
			ch, err := c.fetchChunk(gctx, name, saveDir)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", name, err)
			}
			if ch.SegmentIndex < 0 {
				ch.SegmentIndex = i
			}
			chunks[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (c *Client) fetchChunk(ctx context.Context, name, saveDir string) (agent.Chunk, error) {
	data, err := c.do(ctx, http.MethodGet, "/problem/chunks/"+url.PathEscape(name), nil)
	if err != nil {
		return agent.Chunk{}, err
	}
	if saveDir != "" {
		if err := os.WriteFile(filepath.Join(saveDir, filepath.Base(name)), data, 0o644); err != nil {
			return agent.Chunk{}, fmt.Errorf("save: %w", err)
		}
	}
	samples, rate, err := agent.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return agent.Chunk{}, err
	}
	return agent.Chunk{SegmentIndex: SegmentIndex(name), Samples: samples, SampleRate: rate}, nil
}

// SegmentIndex parses the index out of a chunk name such as
// "problem3_q_m01.wav"; it returns -1 when the name has no index.
func SegmentIndex(name string) int {
	head, _, _ := strings.Cut(filepath.Base(name), "_")
	head = strings.TrimSuffix(strings.TrimPrefix(head, "problem"), ".wav")
	n, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return n
}

// PostAnswer submits (or resubmits) the answer for a round.
func (c *Client) PostAnswer(ctx context.Context, a agent.Answer) error {
	_, err := c.do(ctx, http.MethodPost, "/problem", a)
	return err
}
