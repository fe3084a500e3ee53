// Package rest exposes the Data Hub's I/O service and Query service over
// HTTP: one Handler holding the wired *hub.Hub, a SetupRoutes that
// registers gorilla/mux routes in most-specific-first order, and a pair of
// respondJSON/respondError helpers shared by every handler method.
package rest

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jtchitty/legatoDataHub/internal/hub"
	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/observation"
	"github.com/jtchitty/legatoDataHub/internal/sample"
)

// Handler holds the Hub every route dispatches against.
type Handler struct {
	hub *hub.Hub
}

// NewHandler creates a new HTTP handler over hub.
func NewHandler(h *hub.Hub) *Handler {
	return &Handler{hub: h}
}

// SetupRoutes registers every Data Hub HTTP route on router. Session-scoped
// I/O operations live under /sessions/{sessionID}; Query-service operations
// take an absolute path and need no session.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/sessions/{sessionID}/resources", h.CreateResource).Methods("POST")
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}/push", h.PushSample).Methods("POST")
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}/default", h.SetDefault).Methods("POST")
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}/optional", h.MarkOptional).Methods("POST")
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}/poll-handler", h.AddPollHandler).Methods("POST")
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}/poll-handler", h.RemovePollHandler).Methods("DELETE")
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}/timestamp", h.GetTimestamp).Methods("GET")
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}", h.GetTyped).Methods("GET")
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}", h.DeleteResource).Methods("DELETE")
	router.HandleFunc("/sessions/{sessionID}", h.EndSession).Methods("DELETE")

	router.HandleFunc("/observations", h.ConfigureObservation).Methods("POST")
	router.HandleFunc("/observations/{path:.*}/buffer", h.ReadBuffer).Methods("GET")
	router.HandleFunc("/observations/{path:.*}/aggregate", h.GetAggregate).Methods("GET")

	router.HandleFunc("/query/typed/{path:.*}", h.QueryTyped).Methods("GET")
	router.HandleFunc("/query/timestamp/{path:.*}", h.QueryTimestamp).Methods("GET")
	router.HandleFunc("/query/data-type/{path:.*}", h.QueryDataType).Methods("GET")
	router.HandleFunc("/query/units/{path:.*}", h.QueryUnits).Methods("GET")
}

// createResourceRequest is the body of POST /sessions/{sessionID}/resources.
type createResourceRequest struct {
	Path      string `json:"path"`
	Direction string `json:"direction"` // "input" | "output"
	DataType  string `json:"data_type"`
	Units     string `json:"units"`
}

// CreateResource implements create_input/create_output.
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	var req createResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dataType, err := parseDataType(req.DataType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Direction {
	case "output":
		err = h.hub.CreateOutput(sessionID, req.Path, dataType, req.Units)
	default:
		err = h.hub.CreateInput(sessionID, req.Path, dataType, req.Units)
	}
	h.respondErrOrStatus(w, sessionID, err, http.StatusCreated, nil)
}

// DeleteResource implements delete_resource.
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["sessionID"]
	err := h.hub.DeleteResource(sessionID, vars["path"])
	h.respondErrOrStatus(w, sessionID, err, http.StatusNoContent, nil)
}

// pushRequest is the body of POST .../push.
type pushRequest struct {
	DataType  string  `json:"data_type"`
	Timestamp float64 `json:"timestamp"`
	Value     any     `json:"value,omitempty"`
}

// PushSample implements push_{trigger,bool,numeric,string,json}.
func (h *Handler) PushSample(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, path := vars["sessionID"], vars["path"]
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch req.DataType {
	case "trigger":
		err = h.hub.PushTrigger(sessionID, path, req.Timestamp)
	case "bool":
		b, _ := req.Value.(bool)
		err = h.hub.PushBool(sessionID, path, req.Timestamp, b)
	case "numeric":
		n, _ := req.Value.(float64)
		err = h.hub.PushNumeric(sessionID, path, req.Timestamp, n)
	case "string":
		s, _ := req.Value.(string)
		err = h.hub.PushString(sessionID, path, req.Timestamp, s)
	case "json":
		encoded, marshalErr := json.Marshal(req.Value)
		if marshalErr != nil {
			respondError(w, http.StatusBadRequest, "value is not valid JSON")
			return
		}
		err = h.hub.PushJSON(sessionID, path, req.Timestamp, string(encoded))
	default:
		respondError(w, http.StatusBadRequest, "unknown data_type: "+req.DataType)
		return
	}
	h.respondErrOrStatus(w, sessionID, err, http.StatusNoContent, nil)
}

// SetDefault implements set_{bool,numeric,string,json}_default.
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, path := vars["sessionID"], vars["path"]
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	value, err := sampleFromRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = h.hub.SetDefault(sessionID, path, value)
	h.respondErrOrStatus(w, sessionID, err, http.StatusNoContent, nil)
}

// MarkOptional implements mark_optional.
func (h *Handler) MarkOptional(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["sessionID"]
	err := h.hub.MarkOptional(sessionID, vars["path"])
	h.respondErrOrStatus(w, sessionID, err, http.StatusNoContent, nil)
}

// AddPollHandler implements the reserved add_poll_handler operation: logs
// and reports success without effect.
func (h *Handler) AddPollHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.hub.AddPollHandler(vars["sessionID"], vars["path"])
	h.respondErrOrStatus(w, vars["sessionID"], err, http.StatusNoContent, nil)
}

// RemovePollHandler is the reserved counterpart to AddPollHandler.
func (h *Handler) RemovePollHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.hub.RemovePollHandler(vars["sessionID"], vars["path"])
	h.respondErrOrStatus(w, vars["sessionID"], err, http.StatusNoContent, nil)
}

// GetTyped implements get_{bool,numeric,string,json} on the I/O side.
func (h *Handler) GetTyped(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["sessionID"]
	dataType, err := parseDataType(r.URL.Query().Get("data_type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.hub.GetTyped(sessionID, vars["path"], dataType)
	h.respondErrOrStatus(w, sessionID, err, http.StatusOK, sampleResponse(s))
}

// GetTimestamp implements get_timestamp on the I/O side.
func (h *Handler) GetTimestamp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["sessionID"]
	ts, err := h.hub.GetTimestamp(sessionID, vars["path"])
	h.respondErrOrStatus(w, sessionID, err, http.StatusOK, map[string]float64{"timestamp": ts})
}

// EndSession implements the session-end lifecycle hook.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.hub.EndSession(mux.Vars(r)["sessionID"])
	w.WriteHeader(http.StatusNoContent)
}

// configureObservationRequest is the body of POST /observations.
type configureObservationRequest struct {
	Source   string `json:"source"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// ConfigureObservation implements the administrative observation-binding
// operation.
func (h *Handler) ConfigureObservation(w http.ResponseWriter, r *http.Request) {
	var req configureObservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := h.hub.ConfigureObservation(req.Source, req.Name, req.Capacity)
	if err != nil {
		h.respondErrOrStatus(w, "", err, http.StatusCreated, nil)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"path": entry.Path()})
}

// ReadBuffer implements read_buffer_json.
func (h *Handler) ReadBuffer(w http.ResponseWriter, r *http.Request) {
	path := "/obs/" + mux.Vars(r)["path"]
	startAfter, err := parseStartAfter(r.URL.Query().Get("start_after"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := h.hub.ReadBufferJSON(path, startAfter)
	if err != nil {
		h.writeIPCError(w, "", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// GetAggregate implements get_{min,max,mean,stddev}.
func (h *Handler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	path := "/obs/" + mux.Vars(r)["path"]
	kind, err := parseAggregateKind(r.URL.Query().Get("kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	startAfter, err := parseStartAfter(r.URL.Query().Get("start_after"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.hub.GetAggregate(path, kind, startAfter)
	h.respondErrOrStatus(w, "", err, http.StatusOK, map[string]float64{"value": v})
}

// QueryTyped implements get_{bool,numeric,string,json} on the Query side.
func (h *Handler) QueryTyped(w http.ResponseWriter, r *http.Request) {
	dataType, err := parseDataType(r.URL.Query().Get("data_type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.hub.QueryTyped("/"+mux.Vars(r)["path"], dataType)
	h.respondErrOrStatus(w, "", err, http.StatusOK, sampleResponse(s))
}

// QueryTimestamp implements get_timestamp on the Query side.
func (h *Handler) QueryTimestamp(w http.ResponseWriter, r *http.Request) {
	ts, err := h.hub.QueryTimestamp("/" + mux.Vars(r)["path"])
	h.respondErrOrStatus(w, "", err, http.StatusOK, map[string]float64{"timestamp": ts})
}

// QueryDataType implements get_data_type.
func (h *Handler) QueryDataType(w http.ResponseWriter, r *http.Request) {
	dataType, err := h.hub.GetDataType("/" + mux.Vars(r)["path"])
	h.respondErrOrStatus(w, "", err, http.StatusOK, map[string]string{"data_type": dataType.String()})
}

// QueryUnits implements get_units.
func (h *Handler) QueryUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.hub.GetUnits("/" + mux.Vars(r)["path"])
	h.respondErrOrStatus(w, "", err, http.StatusOK, map[string]string{"units": units})
}

func sampleFromRequest(req pushRequest) (sample.Sample, error) {
	switch req.DataType {
	case "trigger":
		return sample.NewTrigger(req.Timestamp), nil
	case "bool":
		b, _ := req.Value.(bool)
		return sample.NewBool(req.Timestamp, b), nil
	case "numeric":
		n, _ := req.Value.(float64)
		return sample.NewNumeric(req.Timestamp, n), nil
	case "string":
		s, _ := req.Value.(string)
		return sample.NewString(req.Timestamp, s), nil
	case "json":
		encoded, err := json.Marshal(req.Value)
		if err != nil {
			return sample.Sample{}, err
		}
		return sample.NewJSON(req.Timestamp, string(encoded)), nil
	default:
		return sample.Sample{}, ipcerr.ErrFormat
	}
}

func sampleResponse(s sample.Sample) map[string]any {
	resp := map[string]any{"data_type": s.Type().String(), "timestamp": s.Timestamp()}
	switch s.Type() {
	case sample.Bool:
		resp["value"] = s.BoolValue()
	case sample.Numeric:
		resp["value"] = s.NumericValue()
	case sample.String:
		resp["value"] = s.StringValue()
	case sample.JSON:
		resp["value"] = json.RawMessage(s.JSONValue())
	}
	return resp
}

func parseDataType(v string) (sample.Type, error) {
	switch v {
	case "trigger":
		return sample.Trigger, nil
	case "bool":
		return sample.Bool, nil
	case "numeric":
		return sample.Numeric, nil
	case "string":
		return sample.String, nil
	case "json":
		return sample.JSON, nil
	default:
		return 0, ipcerr.ErrFormat
	}
}

func parseAggregateKind(v string) (observation.AggregateKind, error) {
	switch v {
	case "min":
		return observation.Min, nil
	case "max":
		return observation.Max, nil
	case "mean":
		return observation.Mean, nil
	case "stddev":
		return observation.StdDev, nil
	default:
		return 0, ipcerr.ErrFormat
	}
}

func parseStartAfter(v string) (float64, error) {
	if v == "" {
		return math.NaN(), nil // dump the whole buffer when unspecified
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, ipcerr.ErrFormat
	}
	return f, nil
}

func (h *Handler) respondErrOrStatus(w http.ResponseWriter, sessionID string, err error, status int, body any) {
	if err != nil {
		h.writeIPCError(w, sessionID, err)
		return
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	respondJSON(w, status, body)
}

// writeIPCError maps the wire error taxonomy (internal/ipcerr) onto HTTP
// status codes. A KillClient error additionally tears the session down:
// the transport is the collaborator responsible for turning that signal
// into actual termination, so it reclaims sessionID's resources and
// handlers via Hub.EndSession before responding. sessionID is empty for
// Query-service routes, which are not session-scoped.
func (h *Handler) writeIPCError(w http.ResponseWriter, sessionID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case ipcerr.IsKillClient(err):
		status = http.StatusConflict
		if sessionID != "" {
			h.hub.EndSession(sessionID)
		}
	case err == ipcerr.ErrNotFound:
		status = http.StatusNotFound
	case err == ipcerr.ErrDuplicate:
		status = http.StatusConflict
	case err == ipcerr.ErrFormat:
		status = http.StatusUnprocessableEntity
	case err == ipcerr.ErrUnavailable:
		status = http.StatusServiceUnavailable
	case err == ipcerr.ErrUnsupported:
		status = http.StatusNotImplemented
	case err == ipcerr.ErrOverflow:
		status = http.StatusRequestEntityTooLarge
	case err == ipcerr.ErrNoMemory:
		status = http.StatusInsufficientStorage
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
