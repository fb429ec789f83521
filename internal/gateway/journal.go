package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"driftwood/internal/domain"
)

// Recorder persists call records.
type Recorder interface {
	Record(ctx context.Context, rec domain.CallRecord) error
}

// Journaled records every call made through next. Recording failures are
// logged and never change the outcome of the call.
type Journaled struct {
	next     Gateway
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewJournaled(next Gateway, recorder Recorder, logger *slog.Logger) *Journaled {
	return &Journaled{
		next:     next,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

func (j *Journaled) Invoke(ctx context.Context, command Command, args Args) (json.RawMessage, error) {
	start := j.now()
	raw, err := j.next.Invoke(ctx, command, args)

	rec := domain.CallRecord{
		Command:  string(command),
		CalledAt: start.UTC(),
		Duration: j.now().Sub(start),
	}
	if err != nil {
		rec.Transport = err.Error()
	} else {
		summarize(raw, &rec)
	}

	if rerr := j.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
		j.logger.Warn("failed to record call", "command", command, "error", rerr)
	}

	return raw, err
}

// summarize copies whatever header fields it can read; the processor is the
// one that judges validity.
func summarize(raw []byte, rec *domain.CallRecord) {
	var hdr struct {
		Result  bool   `json:"result"`
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		rec.Message = "unreadable envelope"
		return
	}
	rec.Result = hdr.Result
	rec.Status = hdr.Status
	rec.Message = hdr.Message
}
