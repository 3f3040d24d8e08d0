package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"curator/internal/app"
	"curator/internal/tasks"
	"curator/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background escalation worker",
	Long: `Starts the asynq worker that persists escalations enqueued by servers running
with escalation.sink=asynq. Urgent bands get a larger share of worker time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}
		if err := runWorker(appInstance); err != nil {
			log.WithError(err).Error("worker exited with error")
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker initializes and runs the asynq worker server.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	queues := cfg.Worker.Queues
	if len(queues) == 0 {
		queues = tasks.QueueWeights()
	}

	srv := asynq.NewServer(
		appInstance.RedisClientOpt(),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				log.WithError(err).WithFields(log.Fields{
					"task_id": taskID,
					"type":    task.Type(),
				}).Error("asynq task failed")
			}),
			Logger: log.StandardLogger(),
		},
	)

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.EscalationDeps{Store: appInstance.Store})

	log.WithFields(log.Fields{"concurrency": cfg.Worker.Concurrency, "queues": queues}).Info("starting asynq worker server")
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("shutdown signal received, initiating graceful shutdown")
	srv.Shutdown()
	log.Info("worker shutdown complete")
	return nil
}
