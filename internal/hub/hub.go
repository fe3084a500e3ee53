// Package hub is the top-level facade that wires the resource tree, push
// engine, handler registry, observation store and session namespace cache
// together into the operations exposed by the two wire services: the I/O
// service (producer/consumer side) and the Query service. Every method here
// corresponds to one wire operation; transport adapters (internal/api/rest,
// internal/api/websocket) translate wire requests into calls against a
// *Hub and translate returned errors back into the wire error taxonomy
// (internal/ipcerr) or session termination.
package hub

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jtchitty/legatoDataHub/internal/audit"
	"github.com/jtchitty/legatoDataHub/internal/handler"
	"github.com/jtchitty/legatoDataHub/internal/identity"
	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/logging"
	"github.com/jtchitty/legatoDataHub/internal/metrics"
	"github.com/jtchitty/legatoDataHub/internal/observation"
	"github.com/jtchitty/legatoDataHub/internal/push"
	"github.com/jtchitty/legatoDataHub/internal/resource"
	"github.com/jtchitty/legatoDataHub/internal/sample"
	"github.com/jtchitty/legatoDataHub/internal/session"
	"github.com/jtchitty/legatoDataHub/internal/tree"
)

// Hub is the process-wide Data Hub core.
type Hub struct {
	tr       *tree.Tree
	handlers *handler.Registry
	push     *push.Engine
	obs      *observation.Store
	sessions *session.Cache
	log      *slog.Logger

	defaultObsCapacity int
}

// New assembles a Hub. resolver supplies the per-session app-name lookup;
// defaultObsCapacity is the ring-buffer size given to observations that
// haven't been explicitly configured.
func New(resolver identity.Resolver, defaultObsCapacity int, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	tr := tree.New()
	obs := observation.NewStore(defaultObsCapacity)
	h := &Hub{
		tr:                 tr,
		handlers:           handler.New(),
		obs:                obs,
		sessions:           session.NewCache(tr, resolver),
		log:                log,
		defaultObsCapacity: defaultObsCapacity,
	}
	h.push = push.NewEngine(obs)
	return h
}

func now() float64 { return float64(time.Now().UnixNano()) / 1e9 }

// namespaceFor resolves sessionID to its /app/<name> entry under the tree
// lock, so the lookup and any subsequent mutation appear atomic to other
// callers.
func (h *Hub) namespaceFor(sessionID string) (*tree.Entry, error) {
	isNew := !h.sessions.Has(sessionID)
	entry, err := h.sessions.Namespace(sessionID)
	if err == nil && isNew {
		metrics.SessionsActive.Inc()
	}
	return entry, err
}

// --- I/O service -----------------------------------------------------------

// CreateInput implements create_input.
func (h *Hub) CreateInput(sessionID, path string, dataType sample.Type, units string) error {
	h.tr.Lock()
	defer h.tr.Unlock()
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return err
	}
	_, err = resource.Create(h.tr, ns, path, resource.DirectionInput, dataType, units, sessionID)
	audit.Log("create_io", sessionID, path, outcomeOf(err), errString(err))
	return err
}

// CreateOutput implements create_output.
func (h *Hub) CreateOutput(sessionID, path string, dataType sample.Type, units string) error {
	h.tr.Lock()
	defer h.tr.Unlock()
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return err
	}
	_, err = resource.Create(h.tr, ns, path, resource.DirectionOutput, dataType, units, sessionID)
	audit.Log("create_io", sessionID, path, outcomeOf(err), errString(err))
	return err
}

// DeleteResource implements delete_resource.
func (h *Hub) DeleteResource(sessionID, path string) error {
	h.tr.Lock()
	defer h.tr.Unlock()
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return err
	}
	err = resource.Delete(h.tr, ns, path)
	audit.Log("delete_io", sessionID, path, outcomeOf(err), errString(err))
	return err
}

// pushResource resolves path within sessionID's namespace to an existing
// Input or Output entry, killing the client for anything else -- a bare
// namespace, a placeholder, an Observation, or nothing at all. Pushing
// requires the target to exist; handler registration (AddHandler) has
// more permissive rules.
func (h *Hub) pushResource(sessionID, path string) (*tree.Entry, error) {
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return nil, err
	}
	entry, err := h.tr.Find(ns, path)
	if err != nil {
		return nil, ipcerr.Kill(err.Error())
	}
	if entry == nil || (entry.Kind() != tree.KindInput && entry.Kind() != tree.KindOutput) {
		return nil, ipcerr.Kill("push to non-existent or non-I/O resource: " + path)
	}
	return entry, nil
}

func (h *Hub) pushSample(sessionID, path string, declaredType sample.Type, s sample.Sample) error {
	h.tr.Lock()
	defer h.tr.Unlock()
	entry, err := h.pushResource(sessionID, path)
	if err != nil {
		metrics.PushesTotal.WithLabelValues(declaredType.String(), "killed").Inc()
		audit.KillSession(sessionID, err.Error())
		return err
	}
	started := time.Now()
	err = h.push.Push(entry, declaredType, s)
	metrics.PushFanoutDurationSeconds.Observe(time.Since(started).Seconds())
	if ipcerr.IsKillClient(err) {
		metrics.PushesTotal.WithLabelValues(declaredType.String(), "killed").Inc()
		audit.KillSession(sessionID, err.Error())
		return err
	}
	metrics.PushesTotal.WithLabelValues(declaredType.String(), "delivered").Inc()
	return err
}

// PushTrigger implements push_trigger.
func (h *Hub) PushTrigger(sessionID, path string, timestamp float64) error {
	return h.pushSample(sessionID, path, sample.Trigger, sample.NewTrigger(timestamp))
}

// PushBool implements push_bool.
func (h *Hub) PushBool(sessionID, path string, timestamp float64, value bool) error {
	return h.pushSample(sessionID, path, sample.Bool, sample.NewBool(timestamp, value))
}

// PushNumeric implements push_numeric.
func (h *Hub) PushNumeric(sessionID, path string, timestamp, value float64) error {
	return h.pushSample(sessionID, path, sample.Numeric, sample.NewNumeric(timestamp, value))
}

// PushString implements push_string.
func (h *Hub) PushString(sessionID, path string, timestamp float64, value string) error {
	return h.pushSample(sessionID, path, sample.String, sample.NewString(timestamp, value))
}

// PushJSON implements push_json.
func (h *Hub) PushJSON(sessionID, path string, timestamp float64, value string) error {
	return h.pushSample(sessionID, path, sample.JSON, sample.NewJSON(timestamp, value))
}

// AddHandler implements add_{trigger,bool,numeric,string,json}_push_handler.
// Registration on a path with no existing entry at all creates a
// placeholder for it; registration on an existing namespace/placeholder is
// likewise permitted and is carried across any later upgrade, so a
// consumer can subscribe before the producer has created its input.
func (h *Hub) AddHandler(sessionID, path string, dataType sample.Type, deliver func(sample.Sample)) (handler.Ref, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return 0, err
	}
	entry, err := h.tr.GetOrCreate(ns, path)
	if err != nil {
		return 0, ipcerr.Kill(err.Error())
	}
	entry.BecomePlaceholder()
	ref := h.handlers.Add(entry, dataType, sessionID, nil, deliver)
	metrics.HandlersRegistered.Inc()
	audit.Log("add_handler", sessionID, path, "success", "")
	return ref, nil
}

// RemovePushHandler implements remove_*_push_handler.
func (h *Hub) RemovePushHandler(ref handler.Ref) {
	h.tr.Lock()
	defer h.tr.Unlock()
	if h.handlers.Remove(ref) {
		metrics.HandlersRegistered.Dec()
	}
}

// AddPollHandler / RemovePollHandler are reserved wire operations: they log
// and return success without effect.
func (h *Hub) AddPollHandler(sessionID, path string) error {
	h.log.Info("add_poll_handler is reserved and has no effect", "session", sessionID, "path", path)
	return nil
}

// RemovePollHandler is the reserved counterpart to AddPollHandler.
func (h *Hub) RemovePollHandler(sessionID, path string) error {
	h.log.Info("remove_poll_handler is reserved and has no effect", "session", sessionID, "path", path)
	return nil
}

// MarkOptional implements mark_optional.
func (h *Hub) MarkOptional(sessionID, path string) error {
	h.tr.Lock()
	defer h.tr.Unlock()
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return err
	}
	return resource.MarkOptional(h.tr, ns, path)
}

// SetDefault implements set_{bool,numeric,string,json}_default. A type
// mismatch against an already-typed resource terminates the client; an
// absent resource is reported as not-found.
func (h *Hub) SetDefault(sessionID, path string, value sample.Sample) error {
	h.tr.Lock()
	defer h.tr.Unlock()
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return err
	}
	entry, err := h.tr.Find(ns, path)
	if err != nil {
		return ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return ipcerr.ErrNotFound
	}
	if entry.IsResource() && entry.DataType() != value.Type() {
		err := ipcerr.Kill("set_default type mismatch on " + path)
		audit.KillSession(sessionID, err.Error())
		return err
	}
	entry.SetDefault(value)
	return nil
}

// GetTyped implements get_{bool,numeric,string,json} on the I/O side. A
// data-type mismatch terminates the calling session; the query side
// (QueryTyped) reports format-error instead, since its callers are not
// bound to an app session.
func (h *Hub) GetTyped(sessionID, path string, want sample.Type) (sample.Sample, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return sample.Sample{}, err
	}
	s, err := resource.Typed(h.tr, ns, path, want)
	if ipcerr.IsKillClient(err) {
		audit.KillSession(sessionID, err.Error())
	}
	return s, err
}

// GetTimestamp implements get_timestamp on the I/O side.
func (h *Hub) GetTimestamp(sessionID, path string) (float64, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	ns, err := h.namespaceFor(sessionID)
	if err != nil {
		return 0, err
	}
	return resource.Timestamp(h.tr, ns, path)
}

// EndSession reclaims a session's producer-owned resources and removes all
// of its registered handlers. Call this when the underlying transport
// connection/session closes, and whenever an operation above returns a
// KillClient error.
func (h *Hub) EndSession(sessionID string) {
	h.tr.Lock()
	defer h.tr.Unlock()
	removed := h.handlers.RemoveAllForSession(sessionID)
	metrics.HandlersRegistered.Sub(float64(removed))
	// Only sessions that have actually resolved a namespace have anything
	// more to reclaim; going through Namespace here would create one.
	if h.sessions.Has(sessionID) {
		if ns, err := h.sessions.Namespace(sessionID); err == nil && ns != nil {
			h.reclaimOwned(ns, sessionID)
		}
		h.sessions.Close(sessionID)
		metrics.SessionsActive.Dec()
	}
	audit.Log("end_session", sessionID, "", "success", "")
}

// reclaimOwned walks entry's subtree depth-first and removes every resource
// the session created, however deeply nested: intermediate namespaces carry
// no owner of their own, so ownership is only visible on the leaves. A
// resource with observations still bound to it degrades to a placeholder
// instead of disappearing, the same rule delete_io applies; namespaces
// emptied by the removals are pruned by the tree's own ancestor
// reclamation.
func (h *Hub) reclaimOwned(entry *tree.Entry, sessionID string) {
	for _, child := range entry.Children() {
		h.reclaimOwned(child, sessionID)
	}
	if entry.IsResource() && entry.OwnerSession() == sessionID {
		if len(entry.BoundObservations()) > 0 {
			entry.DegradeToPlaceholder()
			return
		}
		h.tr.Delete(entry)
	}
}

// --- Query service -----------------------------------------------------------

// resolveObservation resolves an observation path, which may be absolute
// ("/obs/...") or relative to /obs/.
func (h *Hub) resolveObservation(path string) (*tree.Entry, error) {
	var entry *tree.Entry
	var err error
	if strings.HasPrefix(path, "/obs/") {
		entry, err = h.tr.FindAbsolute(path)
	} else if strings.HasPrefix(path, "/") {
		return nil, nil
	} else {
		entry, err = h.tr.Find(h.tr.Root(), "obs/"+path)
	}
	if err != nil {
		return nil, ipcerr.Kill(err.Error())
	}
	if entry == nil || entry.Kind() != tree.KindObservation {
		return nil, nil
	}
	return entry, nil
}

// ReadBufferJSON implements read_buffer_json. The dump is rendered with the
// operation lock held, so it observes exactly the samples present when it
// started; appends racing in from other transport connections land after
// it.
func (h *Hub) ReadBufferJSON(obsPath string, startAfter float64) ([]byte, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	entry, err := h.resolveObservation(obsPath)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ipcerr.ErrNotFound
	}
	out, err := observation.ReadJSON(h.obs.BufferFor(entry), startAfter, now())
	logging.Operation(h.log, "", "read_buffer_json", obsPath, err)
	return out, err
}

// GetAggregate implements get_{min,max,mean,stddev}.
func (h *Hub) GetAggregate(obsPath string, kind observation.AggregateKind, startTime float64) (float64, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	entry, err := h.resolveObservation(obsPath)
	if err != nil {
		return math.NaN(), err
	}
	if entry == nil {
		return math.NaN(), ipcerr.ErrNotFound
	}
	v, err := observation.Aggregate(h.obs.BufferFor(entry), kind, startTime, now())
	logging.Operation(h.log, "", "get_aggregate", obsPath, err)
	return v, err
}

// GetDataType implements get_data_type on the query side.
func (h *Hub) GetDataType(path string) (sample.Type, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	entry, err := h.tr.FindAbsolute(path)
	if err != nil {
		return 0, ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return 0, ipcerr.ErrNotFound
	}
	if !entry.IsResource() {
		return 0, ipcerr.ErrUnsupported
	}
	return entry.DataType(), nil
}

// GetUnits implements get_units on the query side.
func (h *Hub) GetUnits(path string) (string, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	entry, err := h.tr.FindAbsolute(path)
	if err != nil {
		return "", ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return "", ipcerr.ErrNotFound
	}
	if !entry.IsResource() {
		return "", ipcerr.ErrUnsupported
	}
	return entry.Units(), nil
}

// QueryTimestamp implements get_timestamp on the query side, accepting an
// absolute path.
func (h *Hub) QueryTimestamp(path string) (float64, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	entry, err := h.tr.FindAbsolute(path)
	if err != nil {
		return 0, ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return 0, ipcerr.ErrNotFound
	}
	if s, ok := entry.CurrentValue(); ok {
		return s.Timestamp(), nil
	}
	if s, ok := entry.Default(); ok {
		return s.Timestamp(), nil
	}
	return 0, ipcerr.ErrUnavailable
}

// QueryTyped implements get_{bool,numeric,string,json} on the query side,
// accepting an absolute path.
func (h *Hub) QueryTyped(path string, want sample.Type) (sample.Sample, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	entry, err := h.tr.FindAbsolute(path)
	if err != nil {
		return sample.Sample{}, ipcerr.Kill(err.Error())
	}
	if entry == nil {
		return sample.Sample{}, ipcerr.ErrNotFound
	}
	var s sample.Sample
	var ok bool
	if s, ok = entry.CurrentValue(); !ok {
		if s, ok = entry.Default(); !ok {
			return sample.Sample{}, ipcerr.ErrUnavailable
		}
	}
	if s.Type() != want {
		return sample.Sample{}, ipcerr.ErrFormat
	}
	return s, nil
}

// ConfigureObservation creates (or reconfigures) the observation /obs/<name>
// bound to sourcePath with the given buffer capacity, exercised by the REST
// admin routes. Observations are their own entries under /obs/, bound to
// their source by reference rather than nested beneath it. A capacity of
// zero or less (e.g. omitted from the request) selects the hub's default
// observation capacity.
func (h *Hub) ConfigureObservation(sourcePath, obsName string, capacity int) (*tree.Entry, error) {
	h.tr.Lock()
	defer h.tr.Unlock()
	if capacity <= 0 {
		capacity = h.defaultObsCapacity
	}
	source, err := h.tr.FindAbsolute(sourcePath)
	if err != nil {
		return nil, ipcerr.Kill(err.Error())
	}
	if source == nil {
		return nil, ipcerr.ErrNotFound
	}
	obsEntry, err := h.tr.GetOrCreate(h.tr.Root(), "obs/"+obsName)
	if err != nil {
		return nil, ipcerr.Kill(err.Error())
	}
	if obsEntry.Kind() == tree.KindInput || obsEntry.Kind() == tree.KindOutput {
		// Inputs and Outputs never change kind.
		return nil, ipcerr.ErrDuplicate
	}
	obsEntry.SetRole(tree.KindObservation, source.DataType(), source.Units(), "")
	source.BindObservation(obsEntry)
	h.obs.Configure(obsEntry, capacity)
	return obsEntry, nil
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
