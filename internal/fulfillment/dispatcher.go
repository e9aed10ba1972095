package fulfillment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-assistant/internal/auth"
	"github.com/nerrad567/gray-logic-assistant/internal/device"
)

// DefaultProxyID is the device id the bridge answers IDENTIFY with.
const DefaultProxyID = "graylogic-proxy"

// Source tags where a request arrived.
const (
	SourceCloud = "cloud"
	SourceLocal = "local"
)

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Authenticator resolves bearer tokens. Implemented by *auth.Service.
type Authenticator interface {
	UserForAccessToken(token string) (string, bool)
	IsValidLocalAccessToken(token string) bool
	LocalTokens() (current, next string)
	LinkedUser() (string, bool)
	RemoveAllTokensForUser(user string)
}

// Registry is the device collaborator. Implemented by *device.Registry.
type Registry interface {
	Properties(ctx context.Context) []device.Properties
	States(ctx context.Context, ids []string) map[string]map[string]any
	Get(ctx context.Context, id string) (*device.Device, bool)
	IDs(ctx context.Context) []string
	Execute(ctx context.Context, dev *device.Device, cmd device.Command) device.ExecutionResult
	IsOnline(dev *device.Device) bool
}

// StateReporter receives post-execution states. Implemented by
// *statereport.Reporter.
type StateReporter interface {
	ReportStateAsync(deviceID string, states map[string]any)
}

// Metrics records fulfillment outcomes. Implemented by *influxdb.Client.
type Metrics interface {
	RecordIntent(intent, source, outcome string, devices int, elapsed time.Duration)
	RecordTokenEvent(event string)
}

// Config holds the dispatcher's collaborators.
type Config struct {
	Auth     Authenticator
	Registry Registry

	// Reporter is optional; without it no state is pushed after EXECUTE.
	Reporter StateReporter

	// Metrics is optional.
	Metrics Metrics

	// ProxyID is the id returned by IDENTIFY. Default: DefaultProxyID.
	ProxyID string

	// MinAgentVersion is the lowest local agent version considered
	// compatible, as a semantic version ("1.2.0" or "v1.2.0"). Empty skips
	// the check.
	MinAgentVersion string

	Logger Logger
}

// Caller is the authenticated principal of one request.
type Caller struct {
	User  string
	Local bool
}

// Dispatcher routes fulfillment requests to intent handlers.
type Dispatcher struct {
	auth       Authenticator
	registry   Registry
	reporter   StateReporter
	metrics    Metrics
	proxyID    string
	minVersion string
	logger     Logger
	now        func() time.Time
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.ProxyID == "" {
		cfg.ProxyID = DefaultProxyID
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Dispatcher{
		auth:       cfg.Auth,
		registry:   cfg.Registry,
		reporter:   cfg.Reporter,
		metrics:    cfg.Metrics,
		proxyID:    cfg.ProxyID,
		minVersion: canonicalVersion(cfg.MinAgentVersion),
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Authenticate resolves an Authorization header value. A local token is
// checked through IsValidLocalAccessToken exactly once, which promotes the
// next token when that is the one presented.
func (d *Dispatcher) Authenticate(authorization string) (Caller, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return Caller{}, auth.ErrUnauthenticated
	}

	user, ok := d.auth.UserForAccessToken(token)
	if !ok {
		return Caller{}, auth.ErrUnauthenticated
	}
	if user != auth.LocalExecutionUser {
		return Caller{User: user}, nil
	}
	if !d.auth.IsValidLocalAccessToken(token) {
		return Caller{}, auth.ErrUnauthenticated
	}
	return Caller{User: user, Local: true}, nil
}

// Handle authenticates and dispatches one request. source is SourceCloud or
// SourceLocal and only tags metrics.
func (d *Dispatcher) Handle(ctx context.Context, authorization, source string, req *Request) (*Response, error) {
	caller, err := d.Gate(authorization, source)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, caller, source, req)
}

// Gate authenticates the bearer header and records rejections. Callers that
// must reject unauthenticated requests before reading the body use Gate then
// Dispatch.
func (d *Dispatcher) Gate(authorization, source string) (Caller, error) {
	caller, err := d.Authenticate(authorization)
	if err != nil {
		d.logger.Debug("fulfillment rejected", "source", source, "error", err)
		d.record("", source, "unauthenticated", 0, 0)
		return Caller{}, err
	}
	return caller, nil
}

// Dispatch runs the first input's intent for an authenticated caller.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Caller, source string, req *Request) (*Response, error) {
	start := d.now()

	if req == nil || len(req.Inputs) == 0 {
		return nil, ErrMalformedRequest
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	input := req.Inputs[0]

	var (
		payload any
		devices int
		err     error
	)
	switch input.Intent {
	case IntentSync:
		payload, devices = d.sync(ctx, caller)
	case IntentQuery:
		payload, devices, err = d.query(ctx, input.Payload)
	case IntentExecute:
		payload, devices, err = d.execute(ctx, input.Payload)
	case IntentIdentify:
		payload, err = d.identify(input.Payload)
	case IntentReachableDevices:
		payload, devices = d.reachable(ctx)
	case IntentDisconnect:
		payload = d.disconnect(caller)
	default:
		err = ErrUnknownIntent
	}

	elapsed := d.now().Sub(start)
	if err != nil {
		d.logger.Warn("fulfillment failed", "request_id", req.RequestID, "intent", input.Intent, "error", err)
		d.record(input.Intent, source, ErrorCode(err), devices, elapsed)
		return nil, err
	}

	d.logger.Debug("fulfillment handled",
		"request_id", req.RequestID,
		"intent", input.Intent,
		"source", source,
		"devices", devices,
		"duration", elapsed,
	)
	d.record(input.Intent, source, "success", devices, elapsed)
	return &Response{RequestID: req.RequestID, Payload: payload}, nil
}

func (d *Dispatcher) record(intent, source, outcome string, devices int, elapsed time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordIntent(intent, source, outcome, devices, elapsed)
	}
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
