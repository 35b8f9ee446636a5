package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/cloud"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/config"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/database"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

// Hosted batch sync: validates each entry again and upserts the accepted
// ones into the configured store.

var store remote.Transport

// openStore builds the store batches are written to. "none" is refused:
// the function exists only to write to a remote store.
func openStore(ctx context.Context, backend string) (remote.Transport, error) {
	switch backend {
	case "postgres":
		db, err := database.Connect()
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		return remote.NewPostgresStore(db, nil), nil
	case "dynamodb":
		cfg, err := cloud.LoadConfig(ctx, config.AWSRegion())
		if err != nil {
			return nil, err
		}
		return remote.NewDynamoDBStore(dynamodb.NewFromConfig(cfg), config.DynamoDBTable(), nil), nil
	}
	return nil, fmt.Errorf("REMOTE_BACKEND %q cannot serve the sync function", backend)
}

func Handler(ctx context.Context, req remote.SyncRequest) (remote.BatchResult, error) {
	return submit(ctx, store, req, time.Now())
}

func submit(ctx context.Context, t remote.Transport, req remote.SyncRequest, now time.Time) (remote.BatchResult, error) {
	records := make([]domain.MeasurementRecord, 0, len(req.LocalData))
	var rejected []remote.BatchError

	for _, e := range req.LocalData {
		r, err := e.Record()
		if err == nil {
			err = validation.Record(&r, now)
		}
		if err == nil && r.UserID == "" {
			err = fmt.Errorf("missing user id")
		}
		if err != nil {
			rejected = append(rejected, remote.BatchError{
				ID:      domain.RecordID(domain.Unit(e.UnitType), e.EquipmentID, e.MeasurementDate),
				Message: err.Error(),
			})
			continue
		}
		records = append(records, r)
	}

	res := remote.BatchResult{}
	if len(records) > 0 {
		var err error
		res, err = t.SubmitBatch(ctx, records)
		if err != nil {
			log.Error().Err(err).Int("records", len(records)).Msg("batch submit failed")
			return remote.BatchResult{}, err
		}
	}
	res.Errors = append(res.Errors, rejected...)

	log.Info().
		Int("received", len(req.LocalData)).
		Int("success", res.SuccessCount).
		Int("errors", len(res.Errors)).
		Msg("sync batch processed")
	return res, nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	var err error
	store, err = openStore(context.Background(), config.RemoteBackend())
	if err != nil {
		log.Fatal().Err(err).Msg("remote store unavailable")
	}
	lambda.Start(Handler)
}
