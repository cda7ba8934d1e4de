// Package zenloop is the HTTP client for the zenloop CSV answers importer API.
//
// Every request carries HTTP Basic credentials and waits on a shared token
// bucket before it is sent. Non-2xx responses are returned as *APIError.
// Nothing is retried.
package zenloop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.zenloop.com"

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// Operation names passed to RequestObserver.
const (
	OpSubmitAnswer           = "submit_answer"
	OpFetchQuestions         = "fetch_additional_questions"
	OpSubmitAdditionalAnswer = "submit_additional_answer"
)

// RequestObserver is told about every completed request. status is 0 when no
// response was received.
type RequestObserver interface {
	ObserveRequest(op string, status int, elapsed time.Duration)
}

// Config configures a Client. Zero values select defaults.
type Config struct {
	BaseURL           string
	User              string
	Password          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Observer          RequestObserver
}

// Client implements core.Gateway against the zenloop REST API.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	observer RequestObserver
}

var _ core.Gateway = (*Client)(nil)

// APIError is a non-2xx response from the platform.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zenloop API error: %d - %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// New creates a Client.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:  base,
		user:     cfg.User,
		password: cfg.Password,
		http:     hc,
		limiter:  rate.NewLimiter(limit, burst),
		observer: cfg.Observer,
	}
}

type answerResponse struct {
	Answer struct {
		ID flexibleID `json:"id"`
	} `json:"answer"`
}

type questionsResponse struct {
	AdditionalQuestions []core.AdditionalQuestion `json:"additional_questions"`
}

type additionalAnswerRequest struct {
	Answer     core.AnswerValue `json:"answer"`
	QuestionID string           `json:"question_id"`
}

// SubmitAnswer posts one primary answer to a survey.
func (c *Client) SubmitAnswer(ctx context.Context, surveyID string, payload core.AnswerPayload) (core.AnswerReceipt, error) {
	path := "/csv_answers_importer/surveys/" + url.PathEscape(surveyID) + "/answers"

	var resp answerResponse
	if err := c.do(ctx, OpSubmitAnswer, http.MethodPost, path, payload, &resp); err != nil {
		return core.AnswerReceipt{}, err
	}
	return core.AnswerReceipt{ID: string(resp.Answer.ID)}, nil
}

// FetchAdditionalQuestions lists the survey's additional questions.
func (c *Client) FetchAdditionalQuestions(ctx context.Context, surveyID string) ([]core.AdditionalQuestion, error) {
	path := "/csv_answers_importer/surveys/" + url.PathEscape(surveyID) + "/additional_questions"

	var resp questionsResponse
	if err := c.do(ctx, OpFetchQuestions, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.AdditionalQuestions, nil
}

// SubmitAdditionalAnswer attaches an answer to a follow-up question.
func (c *Client) SubmitAdditionalAnswer(ctx context.Context, answerID, questionID string, answer core.AnswerValue) error {
	path := "/csv_answers_importer/answers/" + url.PathEscape(answerID) + "/additional_answers"
	body := additionalAnswerRequest{Answer: answer, QuestionID: questionID}
	return c.do(ctx, OpSubmitAdditionalAnswer, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", op, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, status, time.Since(start))
	}
}

// flexibleID accepts an id encoded as a JSON string or number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("answer id: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("answer id: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}
