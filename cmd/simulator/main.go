package main

import (
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/config"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/realtime"
)

// Entry mirrors the message the ingestor accepts.
type Entry struct {
	UnitType        string             `json:"unitType"`
	EquipmentID     string             `json:"equipmentId"`
	MeasurementDate string             `json:"measurementDate"`
	Parameters      map[string]float64 `json:"parameters"`
	Notes           string             `json:"notes,omitempty"`
}

const days = 30

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	client, err := realtime.Connect(config.MQTTBroker(), "vibrate-simulator")
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	topic := config.IngestTopic()
	today := time.Now()
	sent := 0

	// one month of readings per equipment, drifting upward with noise
	for _, unit := range []domain.Unit{domain.UnitDRI1, domain.UnitDRI2} {
		for _, eq := range domain.Equipments {
			base := 1 + rng.Float64()*3
			for d := days - 1; d >= 0; d-- {
				e := Entry{
					UnitType:        string(unit),
					EquipmentID:     eq.ID,
					MeasurementDate: today.AddDate(0, 0, -d).Format(domain.DateLayout),
					Parameters:      make(map[string]float64, len(domain.Parameters)),
				}
				drift := float64(days-d) * 0.02
				for _, p := range domain.Parameters {
					v := base + drift + rng.NormFloat64()*0.2
					if p.Type == domain.Acceleration {
						v /= 10
					}
					e.Parameters[p.ID] = clamp(v, p.Limit())
				}
				payload, _ := json.Marshal(e)
				token := client.Publish(topic, 1, false, payload)
				token.Wait()
				if err := token.Error(); err != nil {
					log.Error().Err(err).Msg("publish failed")
					continue
				}
				sent++
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
	log.Info().Int("sent", sent).Msg("simulation done")
}

// clamp keeps v within the accepted range and at two decimals.
func clamp(v, limit float64) float64 {
	v = math.Max(0, math.Min(v, limit))
	return math.Round(v*100) / 100
}
