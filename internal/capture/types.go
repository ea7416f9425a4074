package capture

import (
	"strconv"
	"time"
)

// Status reports the outcome of a single screenshot attempt.
type Status string

// Result status values returned to API clients.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is produced for every URL submitted in a batch, in input order.
type Result struct {
	URL       string `json:"url"`
	Status    Status `json:"status"`
	ImagePath string `json:"image_path,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Succeeded reports whether the result carries an image.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

func successResult(raw, imagePath string) Result {
	return Result{URL: raw, Status: StatusSuccess, ImagePath: imagePath}
}

func errorResult(raw, message string) Result {
	return Result{URL: raw, Status: StatusError, Message: message}
}

// Batch describes one completed pipeline run.
type Batch struct {
	ID         string    `json:"batch_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Counts returns the number of successful and failed results.
func (b Batch) Counts() (succeeded, failed int) {
	for _, r := range b.Results {
		if r.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// BatchSummary is the compact payload published when a batch completes.
type BatchSummary struct {
	BatchID    string    `json:"batch_id"`
	URLs       int       `json:"urls"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ImagePaths []string  `json:"image_paths,omitempty"`
}

// Summary condenses the batch for notification sinks.
func (b Batch) Summary() BatchSummary {
	succeeded, failed := b.Counts()
	summary := BatchSummary{
		BatchID:    b.ID,
		URLs:       len(b.Results),
		Succeeded:  succeeded,
		Failed:     failed,
		StartedAt:  b.StartedAt,
		FinishedAt: b.FinishedAt,
	}
	for _, r := range b.Results {
		if r.Succeeded() {
			summary.ImagePaths = append(summary.ImagePaths, r.ImagePath)
		}
	}
	return summary
}

// Attributes exposes routing metadata for message brokers.
func (s BatchSummary) Attributes() map[string]string {
	return map[string]string{
		"batch_id": s.BatchID,
		"failed":   strconv.Itoa(s.Failed),
	}
}
