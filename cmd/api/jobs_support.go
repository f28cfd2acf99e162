package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/sumqueue/internal/config"
	"github.com/yourusername/sumqueue/internal/jobs"
	"github.com/yourusername/sumqueue/internal/metrics"
	"github.com/yourusername/sumqueue/internal/sum"
)

func setupJobs(cfg *config.Config, log logrus.FieldLogger, jobMetrics *metrics.Jobs) (*jobs.Manager, error) {
	handler := sum.NewHandler(cfg.SumDelay, log.WithField("component", "sum"))

	var m jobs.Metrics
	if jobMetrics != nil {
		m = jobMetrics
	}
	return jobs.NewManager(cfg, handler, m, log)
}

// newComputeCommand はキューを通さずに加算ジョブを1件だけ実行するコマンドです。
func newComputeCommand() *cobra.Command {
	var (
		a, b    string
		batchID string
		delay   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Run the sum job once in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if batchID == "" {
				batchID = uuid.NewString()
			}

			logger := logrus.New()
			logger.SetOutput(cmd.ErrOrStderr())
			handler := sum.NewHandler(delay, logger)

			result, err := handler.Compute(cmd.Context(), jobs.Job{
				ID: batchID,
				Payload: map[string]any{
					"a":        json.Number(a),
					"b":        json.Number(b),
					"batch_id": batchID,
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch_id=%s result=%s\n", batchID, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&a, "a", "0", "first operand (integer of any size)")
	cmd.Flags().StringVar(&b, "b", "0", "second operand (integer of any size)")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "batch id (random uuid when empty)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "simulated processing time")
	return cmd
}
