package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/config"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/localstore"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/realtime"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/reconcile"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/service"
)

// The ingestor only writes locally. Entries are stamped with the ingest
// identity and left pending for the API's sync to push.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	local, err := localstore.Open(config.LocalDBPath())
	if err != nil {
		log.Fatal().Err(err).Msg("local store open failed")
	}
	defer local.Close()

	session := auth.NewSession()
	session.SignIn(auth.User{ID: config.IngestUserID(), Name: config.IngestUserName()})

	svcs := service.New(service.Deps{
		Local:      local,
		Auth:       session,
		Reconciler: reconcile.New(local, nil, session),
	})

	client, err := realtime.Connect(config.MQTTBroker(), "vibrate-ingestor")
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		rec, err := svcs.Records.FromMQTT(context.Background(), msg.Topic(), msg.Payload())
		if err != nil {
			log.Error().Err(err).Str("topic", msg.Topic()).Msg("ingest failed")
			return
		}
		log.Debug().Str("id", rec.ID).Msg("entry stored")
	}

	topic := config.IngestTopic()
	if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("subscribe failed")
	}

	log.Info().Str("topic", topic).Msg("ingestor running; Ctrl+C to stop")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("ingestor stopped")
}
