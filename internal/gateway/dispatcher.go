package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"campus-gateway/internal/middleware"
	"campus-gateway/internal/model"
	"campus-gateway/pkg/apierror"
)

type State int

const (
	StateResolving State = iota
	StateAuthenticating
	StateAuthorizing
	StateForwarding
	StateResponded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorizing:
		return "authorizing"
	case StateForwarding:
		return "forwarding"
	case StateResponded:
		return "responded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FailureClientClosed marks requests abandoned by the client while forwarding.
const FailureClientClosed = "CLIENT_CLOSED"

// Outcome summarizes one dispatched request.
type Outcome struct {
	State    State
	Trace    []State
	Rule     string
	Target   string
	Status   int
	Failure  string
	Identity *model.Identity
	Err      error
}

type authenticator interface {
	Authenticate(header string) (model.Identity, error)
}

// Dispatcher runs every proxied request through route resolution,
// authentication, authorization and forwarding, stopping at the first failure.
type Dispatcher struct {
	table      *RoutingTable
	auth       authenticator
	forwarders map[string]*Forwarder
	metrics    *DispatchMetrics
	logger     *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithMetrics(metrics *DispatchMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher fails when a rule points at a target without a forwarder.
func NewDispatcher(table *RoutingTable, auth authenticator, forwarders []*Forwarder, opts ...DispatcherOption) (*Dispatcher, error) {
	byName := make(map[string]*Forwarder, len(forwarders))
	for _, f := range forwarders {
		byName[f.Target().Name] = f
	}
	for _, rule := range table.Rules() {
		if _, ok := byName[rule.Target]; !ok {
			return nil, fmt.Errorf("rule %s: no forwarder for target %q", rule.Name, rule.Target)
		}
	}

	d := &Dispatcher{
		table:      table,
		auth:       auth,
		forwarders: byName,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.Dispatch(w, r)
}

func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request) Outcome {
	started := time.Now()
	rec := &statusWriter{ResponseWriter: w}
	run := &dispatch{outcome: Outcome{State: StateResolving, Trace: []State{StateResolving}}}

	d.run(rec, r, run)

	run.outcome.Status = rec.status
	d.metrics.observe(run.outcome, time.Since(started))
	d.log(r, run.outcome)
	return run.outcome
}

type dispatch struct {
	outcome Outcome
}

func (x *dispatch) enter(s State) {
	x.outcome.State = s
	x.outcome.Trace = append(x.outcome.Trace, s)
}

func (d *Dispatcher) run(w http.ResponseWriter, r *http.Request, x *dispatch) {
	rule, ok := d.table.Resolve(r.URL.Path)
	if !ok {
		d.reject(w, x, apierror.RouteNotFound())
		return
	}
	x.outcome.Rule = rule.Name
	x.outcome.Target = rule.Target

	var identity *model.Identity
	if rule.RequiresAuth {
		x.enter(StateAuthenticating)
		id, err := d.auth.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			d.reject(w, x, err)
			return
		}
		identity = &id
		x.outcome.Identity = identity

		x.enter(StateAuthorizing)
		if apiErr := middleware.Authorize(identity, rule.AllowedRoles).Err(); apiErr != nil {
			d.reject(w, x, apiErr)
			return
		}
	}

	x.enter(StateForwarding)
	// Identity headers only ever come from a verified token.
	middleware.ForwardIdentity(r, identity)

	forwarder := d.forwarders[rule.Target]
	err := forwarder.Forward(w, r, d.table.Rewrite(rule, r.URL.Path))
	switch {
	case err == nil:
		x.enter(StateResponded)
	case errors.Is(err, context.Canceled) || r.Context().Err() != nil:
		x.enter(StateFailed)
		x.outcome.Failure = FailureClientClosed
		x.outcome.Err = err
	default:
		d.reject(w, x, apierror.ServiceUnavailable(forwarder.Target().UnavailableMessage).Wrap(err))
	}
}

func (d *Dispatcher) reject(w http.ResponseWriter, x *dispatch, err error) {
	apiErr := middleware.AsAPIError(err, "Internal server error")
	x.enter(StateFailed)
	x.outcome.Failure = apiErr.Kind
	x.outcome.Err = err
	middleware.WriteError(w, apiErr, "")
}

func (d *Dispatcher) log(r *http.Request, o Outcome) {
	attrs := []any{
		"rule", o.Rule,
		"target", o.Target,
		"path", r.URL.Path,
		"state", o.State.String(),
		"status", o.Status,
	}
	if o.Failure != "" {
		attrs = append(attrs, "failure", o.Failure)
	}
	if o.Identity != nil {
		attrs = append(attrs, "user_id", o.Identity.Subject)
	}

	switch {
	case o.Failure == apierror.KindServiceUnavailable:
		d.logger.Warn("upstream unavailable", append(attrs, "error", o.Err)...)
	case o.Failure == FailureClientClosed:
		d.logger.Info("client closed request", attrs...)
	default:
		d.logger.Debug("dispatched", attrs...)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	if code >= http.StatusOK && s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusWriter) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
