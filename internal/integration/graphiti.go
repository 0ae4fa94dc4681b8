package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

const (
	messagesPath    = "/messages"
	addMemoryPath   = "/add-memory"
	searchNodesPath = "/search/nodes"
	searchFactsPath = "/search"

	// compressionThreshold is the minimum payload size to compress.
	compressionThreshold = 1024

	// maxReasonBytes bounds how much of an error body ends up in an outcome.
	maxReasonBytes = 512
)

// GraphitiClient submits messages to and searches a Graphiti knowledge graph.
type GraphitiClient interface {
	// Submit posts one message. It never returns an error: every failure is
	// described by the returned outcome.
	Submit(ctx context.Context, msg models.Message) models.SubmissionOutcome

	// Search queries nodes and facts related to query within the group.
	Search(ctx context.Context, query string, maxNodes, maxFacts int) (*SearchResult, error)
}

type graphitiClient struct {
	baseURL      string
	groupID      string
	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration
	fallback     bool
	encoder      *zstd.Encoder
	httpClient   *http.Client
}

// NewGraphitiClient creates a GraphitiClient from configuration. The HTTP
// timeout applies to each attempt, and a submission as a whole never runs
// longer than timeout x (max_retries+1).
func NewGraphitiClient(cfg models.GraphitiConfig) GraphitiClient {
	c := &graphitiClient{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		groupID:      cfg.GroupID,
		timeout:      cfg.Timeout,
		maxRetries:   max(cfg.MaxRetries, 0),
		retryBackoff: cfg.RetryBackoff,
		fallback:     cfg.FallbackEndpoint,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
	if c.retryBackoff <= 0 {
		c.retryBackoff = 500 * time.Millisecond
	}
	if strings.EqualFold(cfg.Compression, "zstd") {
		c.encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	}
	return c
}

// wireMessage is one entry of the /messages request body.
type wireMessage struct {
	Content           string `json:"content"`
	RoleType          string `json:"role_type"`
	Role              string `json:"role"`
	Name              string `json:"name"`
	SourceDescription string `json:"source_description"`
	Timestamp         string `json:"timestamp"`
}

type messagesRequest struct {
	Messages []wireMessage `json:"messages"`
	GroupID  string        `json:"group_id"`
}

type addMemoryMetadata struct {
	AgentID   string `json:"agent_id"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Name      string `json:"name"`
}

type addMemoryMessage struct {
	Role     string            `json:"role"`
	Content  string            `json:"content"`
	Metadata addMemoryMetadata `json:"metadata"`
}

type addMemoryRequest struct {
	Messages []addMemoryMessage `json:"messages"`
}

func (c *graphitiClient) groupFor(msg models.Message) string {
	if msg.GroupID != "" {
		return msg.GroupID
	}
	return c.groupID
}

// budget bounds a whole submission, including backoff waits and the fallback.
func (c *graphitiClient) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout*time.Duration(c.maxRetries+1))
}

func (c *graphitiClient) Submit(ctx context.Context, msg models.Message) models.SubmissionOutcome {
	ctx, cancel := c.budget(ctx)
	defer cancel()

	requestID := uuid.NewString()
	ts := msg.Timestamp.UTC().Format(time.RFC3339Nano)

	primary := messagesRequest{
		Messages: []wireMessage{{
			Content:           msg.Content,
			RoleType:          msg.RoleType,
			Role:              msg.Role,
			Name:              msg.Name,
			SourceDescription: msg.SourceDescription,
			Timestamp:         ts,
		}},
		GroupID: c.groupFor(msg),
	}

	outcome := c.postWithRetry(ctx, messagesPath, primary, requestID, c.maxRetries)
	if !c.fallback || outcome.Status != models.OutcomeRejected {
		return outcome
	}
	if outcome.StatusCode != http.StatusNotFound && outcome.StatusCode != http.StatusMethodNotAllowed {
		return outcome
	}
	// The fallback draws on the attempts /messages left unused.
	remaining := c.maxRetries + 1 - outcome.Attempts
	if remaining <= 0 {
		outcome.Reason += "; fallback skipped: no attempts left"
		return outcome
	}

	alt := addMemoryRequest{
		Messages: []addMemoryMessage{{
			Role:    msg.RoleType,
			Content: msg.Content,
			Metadata: addMemoryMetadata{
				AgentID:   c.groupFor(msg),
				Timestamp: ts,
				Source:    msg.SourceDescription,
				Name:      msg.Name,
			},
		}},
	}
	fb := c.postWithRetry(ctx, addMemoryPath, alt, requestID, remaining-1)
	fb.Attempts += outcome.Attempts
	if !fb.Delivered() {
		fb.Reason = fmt.Sprintf("%s; fallback: %s", outcome.Reason, fb.Reason)
	}
	return fb
}

// postWithRetry posts body to path, retrying network errors and 5xx
// responses with exponential backoff. 4xx responses are never retried, and
// waiting stops once ctx is done.
func (c *graphitiClient) postWithRetry(ctx context.Context, path string, body any, requestID string, retries int) models.SubmissionOutcome {
	outcome := models.SubmissionOutcome{Endpoint: c.baseURL + path}

	payload, err := json.Marshal(body)
	if err != nil {
		outcome.Status = models.OutcomeRejected
		outcome.Reason = fmt.Sprintf("marshalling request: %v", err)
		return outcome
	}

	op := func() error {
		outcome.Attempts++
		status, respBody, err := c.post(ctx, path, payload, requestID)
		outcome.StatusCode = status
		switch {
		case err != nil:
			outcome.Status = models.OutcomeUnreachable
			outcome.Reason = err.Error()
			return err
		case status == http.StatusOK || status == http.StatusCreated || status == http.StatusAccepted:
			outcome.Status = models.OutcomeDelivered
			outcome.Reason = ""
			return nil
		case status >= http.StatusInternalServerError:
			outcome.Status = models.OutcomeUnreachable
			outcome.Reason = fmt.Sprintf("status %d: %s", status, respBody)
			return errors.New(outcome.Reason)
		default:
			outcome.Status = models.OutcomeRejected
			outcome.Reason = fmt.Sprintf("status %d: %s", status, respBody)
			return backoff.Permanent(errors.New(outcome.Reason))
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBackoff
	b.MaxElapsedTime = 0
	_ = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
	return outcome
}

// post performs one request and returns the status code and a truncated body.
func (c *graphitiClient) post(ctx context.Context, path string, payload []byte, requestID string) (int, string, error) {
	body := payload
	encoding := ""
	if c.encoder != nil && len(payload) >= compressionThreshold {
		body = c.encoder.EncodeAll(payload, make([]byte, 0, len(payload)/2))
		encoding = "zstd"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("sending request to %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBytes))
	return resp.StatusCode, strings.TrimSpace(string(data)), nil
}

// SearchNode is an entity node returned by Graphiti search.
type SearchNode struct {
	UUID      string   `json:"uuid" yaml:"uuid"`
	Name      string   `json:"name" yaml:"name"`
	Summary   string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Labels    []string `json:"labels,omitempty" yaml:"labels,omitempty"`
	CreatedAt string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// SearchFact is a relationship fact returned by Graphiti search.
type SearchFact struct {
	UUID      string `json:"uuid" yaml:"uuid"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Fact      string `json:"fact" yaml:"fact"`
	ValidAt   string `json:"valid_at,omitempty" yaml:"valid_at,omitempty"`
	InvalidAt string `json:"invalid_at,omitempty" yaml:"invalid_at,omitempty"`
}

// SearchResult combines node and fact search results.
type SearchResult struct {
	Nodes []SearchNode `json:"nodes" yaml:"nodes"`
	Facts []SearchFact `json:"facts" yaml:"facts"`
}

type searchRequest struct {
	Query    string   `json:"query"`
	MaxNodes int      `json:"max_nodes,omitempty"`
	MaxFacts int      `json:"max_facts,omitempty"`
	GroupIDs []string `json:"group_ids"`
}

// Search runs node and fact searches. A failing half yields an empty list;
// an error is returned only when both fail.
func (c *graphitiClient) Search(ctx context.Context, query string, maxNodes, maxFacts int) (*SearchResult, error) {
	if maxNodes <= 0 {
		maxNodes = 5
	}
	if maxFacts <= 0 {
		maxFacts = 10
	}
	groups := []string{c.groupID}

	result := &SearchResult{Nodes: []SearchNode{}, Facts: []SearchFact{}}

	var nodes struct {
		Nodes []SearchNode `json:"nodes"`
	}
	nodesErr := c.searchJSON(ctx, searchNodesPath, searchRequest{Query: query, MaxNodes: maxNodes, GroupIDs: groups}, &nodes)
	if nodesErr == nil && nodes.Nodes != nil {
		result.Nodes = nodes.Nodes
	}

	var facts struct {
		Facts []SearchFact `json:"facts"`
	}
	factsErr := c.searchJSON(ctx, searchFactsPath, searchRequest{Query: query, MaxFacts: maxFacts, GroupIDs: groups}, &facts)
	if factsErr == nil && facts.Facts != nil {
		result.Facts = facts.Facts
	}

	if nodesErr != nil && factsErr != nil {
		return nil, fmt.Errorf("searching graphiti: %w", errors.Join(nodesErr, factsErr))
	}
	return result, nil
}

func (c *graphitiClient) searchJSON(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshalling search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}
