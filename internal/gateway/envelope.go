package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the uniform reply of every backend command.
type Envelope[T any] struct {
	Result  bool   `json:"result"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Body    T      `json:"body"`
}

// TransportError means no envelope is available: the round trip failed or the
// reply could not be read as an envelope.
type TransportError struct {
	Command Command
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ApplicationError is a well-formed envelope with result=false.
type ApplicationError struct {
	Command Command
	Status  int
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Command, e.Status, e.Message)
}

// Processor decides whether an envelope reports success. It has no side
// effects besides logging.
type Processor struct {
	logger *slog.Logger
}

func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{logger: logger}
}

// Process returns the envelope's result when raw is well formed and false
// otherwise. It never panics.
func (p *Processor) Process(command Command, raw []byte) bool {
	env, err := decodeHeader(raw, command.ExpectsBody())
	if err != nil {
		p.logger.Warn("invalid envelope", "command", command, "error", err)
		return false
	}
	if env.Result {
		p.logger.Debug("operation successful", "command", command, "status", env.Status, "message", env.Message)
	} else {
		p.logger.Debug("operation failed", "command", command, "status", env.Status, "message", env.Message)
	}
	return env.Result
}

// Decode validates raw and decodes it into a typed envelope.
func Decode[T any](p *Processor, command Command, raw []byte) (Envelope[T], error) {
	var env Envelope[T]
	hdr, err := decodeHeader(raw, command.ExpectsBody())
	if err != nil {
		p.logger.Warn("invalid envelope", "command", command, "error", err)
		return env, err
	}
	env.Result = hdr.Result
	env.Status = hdr.Status
	env.Message = hdr.Message
	if hdr.Result && hdr.body != nil {
		if err := json.Unmarshal(hdr.body, &env.Body); err != nil {
			p.logger.Warn("invalid envelope body", "command", command, "error", err)
			return env, fmt.Errorf("%w: body: %v", ErrMalformedEnvelope, err)
		}
	}
	return env, nil
}

// Call issues command through gw and returns the decoded envelope on success.
// Failures are reported as *TransportError or *ApplicationError.
func Call[T any](ctx context.Context, gw Gateway, p *Processor, command Command, args Args) (Envelope[T], error) {
	raw, err := gw.Invoke(ctx, command, args)
	if err != nil {
		return Envelope[T]{}, &TransportError{Command: command, Err: err}
	}
	env, err := Decode[T](p, command, raw)
	if err != nil {
		return Envelope[T]{}, &TransportError{Command: command, Err: err}
	}
	if !env.Result {
		return env, &ApplicationError{Command: command, Status: env.Status, Message: env.Message}
	}
	return env, nil
}

type header struct {
	Result  bool
	Status  int
	Message string
	body    json.RawMessage
}

func decodeHeader(raw []byte, expectBody bool) (header, error) {
	var h header
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return h, fmt.Errorf("%w: not a JSON object", ErrMalformedEnvelope)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return h, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if err := decodeField(fields, "result", &h.Result); err != nil {
		return h, err
	}
	var status any
	if err := decodeField(fields, "status", &status); err != nil {
		return h, err
	}
	num, ok := status.(json.Number)
	if !ok {
		return h, fmt.Errorf("%w: status is not a number", ErrMalformedEnvelope)
	}
	n, err := num.Int64()
	if err != nil {
		return h, fmt.Errorf("%w: status is not an integer", ErrMalformedEnvelope)
	}
	h.Status = int(n)
	if err := decodeField(fields, "message", &h.Message); err != nil {
		return h, err
	}

	body, ok := fields["body"]
	if ok && !bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		h.body = body
	}
	// failed replies may omit the body
	if expectBody && h.Result && h.body == nil {
		return h, fmt.Errorf("%w: missing body", ErrMalformedEnvelope)
	}
	return h, nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	v, ok := fields[name]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrMalformedEnvelope, name)
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return fmt.Errorf("%w: null %s", ErrMalformedEnvelope, name)
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEnvelope, name, err)
	}
	return nil
}
