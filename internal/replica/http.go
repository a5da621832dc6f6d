package replica

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/universalyoga/studiosync/internal/schema"
)

// HTTPConfig configures an HTTP replica.
type HTTPConfig struct {
	// Name identifies the replica in logs ("primary", "secondary").
	Name string

	// BaseURL is the replica endpoint. Empty means not initialized:
	// Ready() reports false and sync attempts skip this replica.
	BaseURL string

	// Timeout for each request. Zero means no client timeout; the core
	// imposes none, so a hung remote blocks that sync attempt.
	Timeout time.Duration

	// Logger for replica activity (default: stderr logger).
	Logger *log.Logger
}

// HTTPReplica mirrors the catalog to a remote JSON document store.
//
// Course documents live at {base}/courses/{id} and are fully replaced on
// every upload. Instance deletes address
// {base}/courses/{courseId}/instances/{id}.
type HTTPReplica struct {
	name    string
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// NewHTTP creates an HTTP replica from config.
func NewHTTP(config HTTPConfig) *HTTPReplica {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[replica] ", log.LstdFlags)
	}
	return &HTTPReplica{
		name:    config.Name,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  &http.Client{Timeout: config.Timeout},
		logger:  logger,
	}
}

// Name implements Replica.Name.
func (r *HTTPReplica) Name() string { return r.name }

// Ready implements Replica.Ready.
func (r *HTTPReplica) Ready() bool { return r.baseURL != "" }

// Upload implements Replica.Upload. Each course document is replaced
// individually; the first failed request aborts the upload.
func (r *HTTPReplica) Upload(ctx context.Context, courses []*schema.Course, instances []*schema.Instance) error {
	if !r.Ready() {
		return fmt.Errorf("replica %s not initialized", r.name)
	}

	docs := BuildDocuments(courses, instances, time.Now().UnixMilli())

	for _, c := range courses {
		body, err := json.Marshal(docs[c.ID])
		if err != nil {
			return fmt.Errorf("failed to marshal course %d: %w", c.ID, err)
		}

		url := fmt.Sprintf("%s/courses/%d", r.baseURL, c.ID)
		if err := r.do(ctx, http.MethodPut, url, body); err != nil {
			return fmt.Errorf("failed to upload course %d to %s: %w", c.ID, r.name, err)
		}
	}

	r.logger.Printf("Uploaded %d courses and %d instances to %s", len(courses), len(instances), r.name)
	return nil
}

// DeleteCourse implements Replica.DeleteCourse.
func (r *HTTPReplica) DeleteCourse(ctx context.Context, courseID int) error {
	if !r.Ready() {
		return fmt.Errorf("replica %s not initialized", r.name)
	}

	url := fmt.Sprintf("%s/courses/%d", r.baseURL, courseID)
	if err := r.do(ctx, http.MethodDelete, url, nil); err != nil {
		return fmt.Errorf("failed to delete course %d from %s: %w", courseID, r.name, err)
	}

	r.logger.Printf("Deleted course %d from %s", courseID, r.name)
	return nil
}

// DeleteInstance implements Replica.DeleteInstance.
func (r *HTTPReplica) DeleteInstance(ctx context.Context, courseID, instanceID int) error {
	if !r.Ready() {
		return fmt.Errorf("replica %s not initialized", r.name)
	}

	url := fmt.Sprintf("%s/courses/%d/instances/%d", r.baseURL, courseID, instanceID)
	if err := r.do(ctx, http.MethodDelete, url, nil); err != nil {
		return fmt.Errorf("failed to delete instance %d from %s: %w", instanceID, r.name, err)
	}

	r.logger.Printf("Deleted instance %d (course %d) from %s", instanceID, courseID, r.name)
	return nil
}

// do executes one request and treats any non-2xx status as failure.
func (r *HTTPReplica) do(ctx context.Context, method, url string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
