package main

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helixml/corepipe/pkg/config"
	"github.com/helixml/corepipe/pkg/modelworker"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// newWorkerCmd runs one C8 model worker process. Without --nats-url it
// serves over an in-process loopback transport and simply blocks, useful
// for smoke-testing the batching/lifecycle behavior without a broker; with
// --nats-url it serves real cross-process requests the way a GPU-backed
// worker would in production.
func newWorkerCmd() *cobra.Command {
	var (
		workerID string
		modelID  string
		device   string
		natsURL  string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a model worker process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWorkerConfig()
			if err != nil {
				return err
			}
			if logLevel != "" {
				configureLogging(logLevel)
			} else {
				configureLogging("info")
			}
			return runWorker(cfg, workerID, modelID, device, natsURL)
		},
	}
	cmd.Flags().StringVar(&workerID, "worker-id", "", "worker identity")
	cmd.Flags().StringVar(&modelID, "model-id", "", "model this worker serves")
	cmd.Flags().StringVar(&device, "device", "cpu", "execution device")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL; empty runs an in-process loopback worker")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override log level")
	cmd.MarkFlagRequired("worker-id")
	cmd.MarkFlagRequired("model-id")
	return cmd
}

// echoInferFunc is the reference inference backend used until a real
// model runtime is wired in: it hands every input tensor straight back,
// the same "reference node, no real backend" stance calculator.Node takes
// for the unary scenario.
func echoInferFunc(tensors []*streamtype.RuntimeData, params []map[string]any) ([]*streamtype.RuntimeData, error) {
	return tensors, nil
}

// buildWorker constructs and initializes a Worker, separated from
// runWorker's blocking serve loop so it can be exercised directly in
// tests without a live NATS server.
func buildWorker(cfg config.WorkerConfig, workerID, modelID, device string) (*modelworker.Worker, error) {
	w := modelworker.New(workerID, modelID, device, cfg.BatchSize, cfg.BatchTimeout(), echoInferFunc)
	if _, err := w.Init(modelworker.InitRequest{
		WorkerID: workerID,
		ModelID:  modelID,
		Device:   device,
		Batch:    cfg.BatchSize,
		Timeout:  cfg.BatchTimeout(),
	}); err != nil {
		return nil, err
	}
	return w, nil
}

func runWorker(cfg config.WorkerConfig, workerID, modelID, device, natsURL string) error {
	w, err := buildWorker(cfg, workerID, modelID, device)
	if err != nil {
		return err
	}
	defer w.Close()

	if natsURL == "" {
		log.Info().Str("worker_id", workerID).Str("model_id", modelID).Msg("worker running on in-process loopback transport, blocking")
		modelworker.NewLoopbackTransport(w)
		select {}
	}

	conn, err := nats.Connect(natsURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info().Str("worker_id", workerID).Str("model_id", modelID).Str("nats_url", natsURL).Msg("worker ready")

	sub, err := subscribeWorker(conn, "worker."+workerID, w)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	select {}
}

// subscribeWorker bridges NATS requests for every C8 subject onto the
// Worker's methods directly via a LoopbackTransport (the NatsTransport
// type in this package is the client-calling side; serving a request here
// just needs the same in-process subject->handler dispatch LoopbackTransport
// already provides).
func subscribeWorker(conn *nats.Conn, prefix string, w *modelworker.Worker) (*nats.Subscription, error) {
	loopback := modelworker.NewLoopbackTransport(w)
	return conn.Subscribe(prefix+".>", func(msg *nats.Msg) {
		subject := msg.Subject[len(prefix)+1:]
		reply, err := loopback.Request(context.Background(), subject, msg.Data)
		if err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("worker request failed")
			return
		}
		if msg.Reply != "" {
			if err := conn.Publish(msg.Reply, reply); err != nil {
				log.Error().Err(err).Msg("failed to publish worker reply")
			}
		}
	})
}
