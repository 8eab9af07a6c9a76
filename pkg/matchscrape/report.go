package matchscrape

import (
	"time"

	"github.com/jmylchreest/matchscrape/pkg/recovery"
	"github.com/jmylchreest/matchscrape/pkg/selector"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

// Report summarizes a validation and recovery session.
type Report struct {
	Timestamp         time.Time                `json:"timestamp" yaml:"timestamp"`
	SessionID         string                   `json:"session_id" yaml:"session_id"`
	URL               string                   `json:"url,omitempty" yaml:"url,omitempty"`
	Config            recovery.Config          `json:"config" yaml:"config"`
	Metrics           validate.MetricsSnapshot `json:"metrics" yaml:"metrics"`
	SuccessRate       float64                  `json:"success_rate" yaml:"success_rate"`
	History           []recovery.Attempt       `json:"history" yaml:"history"`
	ValidationHistory []validate.Event         `json:"validation_history" yaml:"validation_history"`
	FinalSelectors    selector.ResolvedSet     `json:"final_selectors" yaml:"final_selectors"`
}

// Report builds the session report as of now.
func (s *Session) Report() Report {
	m := s.Metrics()
	return Report{
		Timestamp:         time.Now(),
		SessionID:         s.id,
		URL:               s.url,
		Config:            s.config.Recovery,
		Metrics:           m,
		SuccessRate:       m.SuccessRate(),
		History:           s.engine.History(),
		ValidationHistory: s.validator.History(),
		FinalSelectors:    s.selectors.Clone(),
	}
}
