package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/henrymedina447/sbs-suptech-etl-v2/blockgraph"
	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

// OCR job states
const (
	JobInProgress = "IN_PROGRESS"
	JobSucceeded  = "SUCCEEDED"
	JobFailed     = "FAILED"
)

type OCRService struct {
	config     *config.OCRConfig
	bucket     string
	httpClient *http.Client
}

// OCRJobRequest starts document analysis of one stored object
type OCRJobRequest struct {
	Bucket   string   `json:"bucket"`
	Key      string   `json:"key"`
	Features []string `json:"features"`
}

// OCRJobResponse is returned when a job is accepted
type OCRJobResponse struct {
	JobID string `json:"job_id"`
}

// OCRJobResult is one page of a job's result
type OCRJobResult struct {
	JobStatus     string             `json:"JobStatus"`
	StatusMessage string             `json:"StatusMessage,omitempty"`
	Blocks        []blockgraph.Block `json:"Blocks"`
	NextToken     string             `json:"NextToken,omitempty"`
}

// NewOCRService creates a client for the OCR service. bucket is where source
// documents are read from.
func NewOCRService(cfg *config.OCRConfig, bucket string) *OCRService {
	return &OCRService{
		config: cfg,
		bucket: bucket,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// StartJob submits key for analysis and returns the job id
func (s *OCRService) StartJob(ctx context.Context, key string) (string, error) {
	reqBody := OCRJobRequest{
		Bucket:   s.bucket,
		Key:      key,
		Features: s.config.Features,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/jobs", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result OCRJobResponse
	if err := s.do(req, "ocr.start", &result); err != nil {
		return "", err
	}
	if result.JobID == "" {
		return "", retry.Permanent("ocr.start", fmt.Errorf("no job id for %s", key))
	}
	return result.JobID, nil
}

// GetJob returns the job status and, once finished, one page of blocks.
// nextToken selects the page; empty means the first.
func (s *OCRService) GetJob(ctx context.Context, jobID, nextToken string) (*OCRJobResult, error) {
	endpoint := fmt.Sprintf("%s/jobs/%s", s.config.APIURL, url.PathEscape(jobID))
	if nextToken != "" {
		endpoint += "?next_token=" + url.QueryEscape(nextToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result OCRJobResult
	if err := s.do(req, "ocr.get", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *OCRService) do(req *http.Request, op string, out any) error {
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}
	req.Header.Set("Accept", "application/json")
	return doJSON(s.httpClient, req, op, out)
}

// doJSON sends req and decodes a JSON body into out. Non-2xx responses are
// returned as classified remote errors.
func doJSON(client *http.Client, req *http.Request, op string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: failed to send request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return retry.FromStatus(op, resp.StatusCode, fmt.Errorf("%s", truncate(body, 512)))
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(op, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
