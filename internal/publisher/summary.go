// Package publisher builds the run notification sent after a harvest. The
// transports live in the pubsub and memory subpackages.
package publisher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/output"
	"github.com/JakeFAU/courthouse-harvester/internal/pipeline"
)

// Run statuses reported in summaries and the harvest_runs_total metric.
const (
	StatusSuccess  = "success"
	StatusEmpty    = "no_sources"
	StatusCanceled = "canceled"
	StatusFailed   = "failed"
)

// RunSummary is the notification payload describing one run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Mode        string    `json:"mode"`
	Strategy    string    `json:"strategy"`
	Status      string    `json:"status"`
	Sources     int       `json:"sources"`
	Records     int       `json:"records"`
	ArtifactURI string    `json:"artifact_uri"`
	SHA256      string    `json:"sha256"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// NewRunSummary combines a pipeline result with the artifact it produced.
func NewRunSummary(result pipeline.Result, artifact output.Artifact, status string) RunSummary {
	return RunSummary{
		RunID:       result.RunID,
		Mode:        string(result.Mode),
		Strategy:    result.Strategy,
		Status:      status,
		Sources:     result.Sources,
		Records:     result.Records,
		ArtifactURI: artifact.URI,
		SHA256:      artifact.SHA256,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}
}

// Attributes exposes routing keys as Pub/Sub message attributes.
func (s RunSummary) Attributes() map[string]string {
	return map[string]string{
		"run_id": s.RunID,
		"mode":   s.Mode,
		"status": s.Status,
	}
}

// Notify publishes summary to topic. A nil publisher is a no-op.
func Notify(ctx context.Context, pub harvest.Publisher, topic string, summary RunSummary, logger *zap.Logger) error {
	if pub == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id, err := pub.Publish(ctx, topic, summary)
	if err != nil {
		return fmt.Errorf("notify run %s: %w", summary.RunID, err)
	}
	logger.Info("run summary published",
		zap.String("topic", topic),
		zap.String("message_id", id),
		zap.String("run_id", summary.RunID),
	)
	return nil
}
