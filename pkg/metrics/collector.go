package metrics

import (
	"time"

	"github.com/cuemby/streakline/pkg/types"
)

// Source is the read side of the store the collector samples
type Source interface {
	ListChallenges() ([]*types.Challenge, error)
	ListParticipantsByChallenge(challengeID string) ([]*types.Participant, error)
}

// Collector periodically samples store gauges
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect samples the store once
func (c *Collector) Collect() {
	challenges, err := c.source.ListChallenges()
	if err != nil {
		UpdateComponent("storage", false, err.Error())
		return
	}
	UpdateComponent("storage", true, "")

	ChallengesTotal.Set(float64(len(challenges)))

	for _, challenge := range challenges {
		participants, err := c.source.ListParticipantsByChallenge(challenge.ID)
		if err != nil {
			continue
		}
		ParticipantsTotal.WithLabelValues(challenge.ID).Set(float64(len(participants)))
	}
}
