// Package judge submits Java solutions to a Judge0 compatible execution
// service and classifies the verdict.
package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"code_dojo/internal/common"
	"code_dojo/internal/platform/config"
	"code_dojo/internal/platform/metrics"
)

const DefaultLanguageID = 91 // Java (JDK 17)

const (
	rejectMessage = `Do not include public classes such as "public class Name". Submit only the required static method.`
	rejectError   = "Public class detected. Submit only the method, not a full class."
)

const javaImports = `import java.util.List;
import java.util.ArrayList;
import java.util.Set;
import java.util.HashSet;
import java.util.Arrays;
`

var (
	publicClassPattern = regexp.MustCompile(`public\s+class\s+\w+`)
	packagePattern     = regexp.MustCompile(`package\s+[^;]+;`)
	importPattern      = regexp.MustCompile(`import\s+[^;]+;`)
)

// Outcome is the decoded and classified result of one submission.
type Outcome struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Output   string `json:"output"`
	Error    string `json:"error"`
	StatusID int    `json:"status_id"`
	// Rejected is set when the source failed the pre-flight check and was
	// never sent to the judge.
	Rejected bool `json:"-"`
}

type Client struct {
	baseURL    string
	apiKey     string
	apiHost    string
	languageID int
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	languageID := cfg.JudgeLanguageID
	if languageID == 0 {
		languageID = DefaultLanguageID
	}
	timeout := cfg.JudgeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.JudgeAPIURL, "/"),
		apiKey:     cfg.JudgeAPIKey,
		apiHost:    cfg.JudgeAPIHost,
		languageID: languageID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Rejects reports whether source declares its own public class.
func Rejects(source string) bool {
	return publicClassPattern.MatchString(source)
}

// WrapSource strips package and import statements and makes the code a
// compilable unit: bare members are wrapped in a Main class, and the common
// java.util imports are always prepended.
func WrapSource(source string) string {
	source = packagePattern.ReplaceAllString(source, "")
	source = importPattern.ReplaceAllString(source, "")
	source = strings.TrimSpace(source)

	if publicClassPattern.MatchString(source) {
		return javaImports + "\n" + source
	}
	return javaImports + "\npublic class Main {\n    " + source + "\n}"
}

// Submit runs source against stdin with the configured language.
func (c *Client) Submit(ctx context.Context, source, stdin string) (*Outcome, error) {
	return c.SubmitLanguage(ctx, source, stdin, c.languageID)
}

type submissionRequest struct {
	LanguageID int    `json:"language_id"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

type submissionResponse struct {
	Status *struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
}

// SubmitLanguage makes exactly one synchronous judge call, or none when the
// source fails the pre-flight check. Transport failures and non-2xx replies
// wrap common.ErrServiceUnavailable; judge verdicts are never errors.
func (c *Client) SubmitLanguage(ctx context.Context, source, stdin string, languageID int) (*Outcome, error) {
	if Rejects(source) {
		return &Outcome{
			Success:  false,
			Message:  rejectMessage,
			Error:    rejectError,
			StatusID: StatusCompilationError,
			Rejected: true,
		}, nil
	}

	payload, err := json.Marshal(submissionRequest{
		LanguageID: languageID,
		SourceCode: base64.StdEncoding.EncodeToString([]byte(WrapSource(source))),
		Stdin:      base64.StdEncoding.EncodeToString([]byte(stdin)),
	})
	if err != nil {
		return nil, fmt.Errorf("judge: marshal submission: %w", err)
	}

	url := c.baseURL + "/submissions?base64_encoded=true&wait=true&fields=*"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("judge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-rapidapi-key", c.apiKey)
	}
	if c.apiHost != "" {
		req.Header.Set("x-rapidapi-host", c.apiHost)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.JudgeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.JudgeRequests.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("judge: %w: %w", common.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		metrics.JudgeRequests.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("judge: read response: %w: %w", common.ErrServiceUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.JudgeRequests.WithLabelValues("http_" + strconv.Itoa(resp.StatusCode)).Inc()
		slog.Error("judge returned non-success status", "status", resp.StatusCode, "body", truncate(string(body), 512))
		return nil, fmt.Errorf("judge: http status %d: %w", resp.StatusCode, common.ErrServiceUnavailable)
	}

	var decoded submissionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		metrics.JudgeRequests.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("judge: decode response: %w: %w", common.ErrServiceUnavailable, err)
	}

	statusID := 0
	if decoded.Status != nil {
		statusID = decoded.Status.ID
	}
	verdict := Classify(statusID)
	metrics.JudgeRequests.WithLabelValues(verdict.Message).Inc()

	outcome := &Outcome{
		Success:  verdict.Success,
		Message:  verdict.Message,
		Output:   decodeField(decoded.Stdout),
		StatusID: statusID,
	}
	switch {
	case decoded.Stderr != nil && *decoded.Stderr != "":
		outcome.Error = decodeField(decoded.Stderr)
	case decoded.CompileOutput != nil && *decoded.CompileOutput != "":
		outcome.Error = decodeField(decoded.CompileOutput)
	}
	return outcome, nil
}

// decodeField base64 decodes a judge field. The judge breaks long encodings
// across lines, so whitespace is dropped first.
func decodeField(field *string) string {
	if field == nil || *field == "" {
		return ""
	}
	compact := strings.Join(strings.Fields(*field), "")
	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		slog.Warn("judge field is not valid base64, using raw text", "error", err)
		return *field
	}
	return string(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
