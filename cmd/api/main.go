package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/cloud"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/config"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/database"
	httpHandlers "github.com/ANIKETSHETTY47/vibration-monitor/internal/http"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/localstore"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/realtime"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/reconcile"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	ctx := context.Background()

	local, err := localstore.Open(config.LocalDBPath())
	if err != nil {
		log.Fatal().Err(err).Msg("local store open failed")
	}
	defer local.Close()

	session := auth.NewSession()

	// realtime is optional; the API works without a broker
	var publisher remote.Publisher
	var feed httpHandlers.ChangeFeed
	if client, err := realtime.Connect(config.MQTTBroker(), "vibrate-api"); err != nil {
		log.Warn().Err(err).Msg("mqtt unavailable, realtime disabled")
	} else {
		defer client.Disconnect(250)
		publisher = realtime.NewPublisher(client, config.RealtimeTopic())
		f := realtime.NewFeed(client, config.RealtimeTopic(), session)
		f.Start()
		defer f.Stop()
		feed = f
	}

	transport, userSettings, closeRemote, err := openRemote(ctx, publisher)
	if err != nil {
		log.Warn().Err(err).Msg("remote store unavailable, running local only")
	}
	defer closeRemote()

	deps := service.Deps{
		Local:          local,
		Remote:         transport,
		RemoteSettings: userSettings,
		Auth:           session,
		Reconciler:     reconcile.New(local, transport, session),
		SyncOnSave:     config.SyncOnSave(),
	}
	if config.UseCloudServices() {
		cfg, err := cloud.LoadConfig(ctx, config.AWSRegion())
		if err != nil {
			log.Fatal().Err(err).Msg("aws config failed")
		}
		deps.Reports = cloud.NewS3Client(cfg, config.S3Bucket())
		if arn := config.SNSTopicArn(); arn != "" {
			deps.Notifier = cloud.NewSNSClient(cfg, arn)
		}
		log.Info().Str("bucket", config.S3Bucket()).Msg("cloud services enabled")
	}
	svcs := service.New(deps)

	if spec := config.AutoSyncSchedule(); spec != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(spec, func() { svcs.AutoSync(context.Background()) }); err != nil {
			log.Fatal().Err(err).Str("schedule", spec).Msg("invalid auto sync schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info().Str("schedule", spec).Msg("auto sync scheduled")
	}

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	httpHandlers.Register(app, svcs, httpHandlers.Options{
		Session: session,
		Feed:    feed,
		Locale:  config.Locale(),
	})

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Str("remote", config.RemoteBackend()).Msg("api listening")
	log.Fatal().Err(app.Listen(addr)).Msg("server exit")
}

// openRemote builds the remote transport and settings store selected by
// REMOTE_BACKEND. With SYNC_FUNCTION set, batches go through the hosted
// function instead.
func openRemote(ctx context.Context, publisher remote.Publisher) (remote.Transport, remote.SettingsStore, func(), error) {
	noop := func() {}

	var reads remote.Transport
	var settings remote.SettingsStore
	closeFn := noop
	switch backend := config.RemoteBackend(); backend {
	case "none", "":
		return nil, nil, noop, nil
	case "postgres":
		db, err := database.Connect()
		if err != nil {
			return nil, nil, noop, fmt.Errorf("db connect: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		store := remote.NewPostgresStore(db, publisher)
		reads, settings = store, store
		closeFn = func() { db.Close() }
	case "dynamodb":
		cfg, err := cloud.LoadConfig(ctx, config.AWSRegion())
		if err != nil {
			return nil, nil, noop, err
		}
		client := dynamodb.NewFromConfig(cfg)
		reads = remote.NewDynamoDBStore(client, config.DynamoDBTable(), publisher)
		settings = remote.NewDynamoDBSettings(client, config.SettingsTable())
	default:
		return nil, nil, noop, fmt.Errorf("unknown REMOTE_BACKEND %q", backend)
	}

	if fn := config.SyncFunction(); fn != "" {
		cfg, err := cloud.LoadConfig(ctx, config.AWSRegion())
		if err != nil {
			closeFn()
			return nil, nil, noop, err
		}
		return remote.NewFunctionSubmitter(lambda.NewFromConfig(cfg), fn, reads, publisher), settings, closeFn, nil
	}
	return reads, settings, closeFn, nil
}
