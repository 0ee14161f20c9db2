package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xizhibei/go-estimator-gateway/batch"
	"github.com/xizhibei/go-estimator-gateway/config"
	"github.com/xizhibei/go-estimator-gateway/predict"
	"github.com/xizhibei/go-estimator-gateway/upstream"
	"go.uber.org/zap"
)

func main() {
	in := flag.String("in", "", "input CSV with a header row")
	out := flag.String("out", "", "output CSV")
	features := flag.String("features", "", "comma separated feature columns; defaults to the model's feature list")
	batchSize := flag.Int("batch-size", 256, "rows per ML API call")
	workers := flag.Int("workers", 4, "concurrent ML API calls")
	rps := flag.Float64("rps", 0, "ML API calls per second, 0 for unlimited")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	log := logger.Sugar()

	if *in == "" || *out == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := upstream.NewHTTPClient(cfg.Upstream.BaseURL, upstream.WithTimeouts(upstream.Timeouts{
		Health:    cfg.Upstream.HealthTimeout,
		ModelInfo: cfg.Upstream.ModelInfoTimeout,
		Predict:   cfg.Upstream.PredictTimeout,
	}))

	cols, err := batch.ResolveFeatures(ctx, client, batch.ParseFeatures(*features))
	if err != nil {
		log.Fatalf("Resolve features: %v", err)
	}

	inFile, err := os.Open(*in)
	if err != nil {
		log.Fatalf("Open input: %v", err)
	}
	table, err := batch.ReadTable(inFile, cols)
	inFile.Close()
	if err != nil {
		log.Fatalf("Read input: %v", err)
	}
	log.Infof("Read %d rows with features %v", len(table.Rows), cols)

	start := time.Now()
	runner := batch.NewRunner(predict.New(client, validator.New()),
		batch.WithBatchSize(*batchSize),
		batch.WithWorkerNum(*workers),
		batch.WithRate(*rps, 1),
	)
	preds, err := runner.Run(ctx, table)
	if err != nil {
		log.Fatalf("Predict: %v", err)
	}

	outFile, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Create output: %v", err)
	}
	if err := batch.WriteTable(outFile, table, preds); err != nil {
		outFile.Close()
		log.Fatalf("Write output: %v", err)
	}
	if err := outFile.Close(); err != nil {
		log.Fatalf("Close output: %v", err)
	}

	log.Infof("Wrote %d predictions to %s in %v", len(preds), *out, time.Since(start).Round(time.Millisecond))
}
