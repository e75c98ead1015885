package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/logger"
)

// TVReport summarizes one TradingView intake
type TVReport struct {
	Received int      `json:"received"`
	Inserted int      `json:"inserted"`
	Existing int      `json:"existing"`
	Rejected []string `json:"rejected"`
}

// TVIntake validates and stores TradingView alerts
type TVIntake struct {
	store    contracts.TVSignalStore
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

// NewTVIntake creates a TradingView intake
func NewTVIntake(store contracts.TVSignalStore, log *logger.Logger) *TVIntake {
	return &TVIntake{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.WithField("component", "tv_intake"),
		now:      time.Now,
	}
}

// DecodeTVSignals reads a JSON array of alerts
func DecodeTVSignals(r io.Reader) ([]contracts.TVSignal, error) {
	var sigs []contracts.TVSignal
	dec := json.NewDecoder(r)
	if err := dec.Decode(&sigs); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrMalformed, err)
	}
	return sigs, nil
}

// Ingest validates sigs and bulk inserts the valid ones.
// Rows already stored for (signal_time, ticker, trade_type) are left alone.
func (t *TVIntake) Ingest(ctx context.Context, sigs []contracts.TVSignal) (*TVReport, error) {
	report := &TVReport{Received: len(sigs), Rejected: []string{}}

	valid := make([]contracts.TVSignal, 0, len(sigs))
	for i, s := range sigs {
		s.Ticker = strings.ToUpper(strings.TrimSpace(s.Ticker))
		s.TradeType = strings.ToUpper(strings.TrimSpace(s.TradeType))
		if err := t.validate.Struct(s); err != nil {
			t.logger.WithError(err).WithField("index", i).Warn("Rejected TradingView signal")
			report.Rejected = append(report.Rejected, fmt.Sprintf("#%d %s: %v", i, s.Ticker, err))
			continue
		}
		if s.UpdatedTime.IsZero() {
			s.UpdatedTime = t.now()
		}
		valid = append(valid, s)
	}

	if len(valid) == 0 {
		return report, nil
	}

	inserted, err := t.store.BulkInsert(ctx, valid)
	if err != nil {
		return report, err
	}
	report.Inserted = inserted
	report.Existing = len(valid) - inserted

	t.logger.WithFields(map[string]interface{}{
		"received": report.Received,
		"inserted": report.Inserted,
		"existing": report.Existing,
		"rejected": len(report.Rejected),
	}).Info("TradingView signals stored")
	return report, nil
}
