package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jtchitty/legatoDataHub/internal/handler"
	"github.com/jtchitty/legatoDataHub/internal/hub"
	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/sample"
)

// Handler upgrades HTTP connections to WebSocket push-delivery
// subscriptions against a *hub.Hub, gating only on the declared data type
// and path: client identity over this transport is the session ID in the
// route, consistent with internal/api/rest.
type Handler struct {
	hub       *hub.Hub
	wsHub     *Hub
	log       *slog.Logger
	upgrader  websocket.Upgrader
	allowList map[string]bool
}

// NewHandler builds a WebSocket handler. allowedOrigins empty means accept
// any origin, matching the REST CORS posture wired in cmd/datahubd.
func NewHandler(h *hub.Hub, wsHub *Hub, log *slog.Logger, allowedOrigins []string) *Handler {
	allowList := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowList[o] = true
	}
	hd := &Handler{hub: h, wsHub: wsHub, log: log, allowList: allowList}
	hd.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     hd.checkOrigin,
	}
	return hd
}

func (hd *Handler) checkOrigin(r *http.Request) bool {
	if len(hd.allowList) == 0 || hd.allowList["*"] {
		return true
	}
	return hd.allowList[r.Header.Get("Origin")]
}

// SetupRoutes registers the subscription route on router.
func SetupRoutes(router *mux.Router, hd *Handler) {
	router.HandleFunc("/sessions/{sessionID}/resources/{path:.*}/subscribe", hd.Subscribe).Methods("GET")
}

// subscribeEnvelope is the message written to the socket for every delivered
// sample: the sample's own wire encoding plus the path it was pushed to,
// so one connection can in principle multiplex several paths.
type subscribeEnvelope struct {
	Path string `json:"path"`
	sample.Sample
}

func (e subscribeEnvelope) MarshalJSON() ([]byte, error) {
	body, err := e.Sample.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["path"] = mustMarshal(e.Path)
	return json.Marshal(fields)
}

func mustMarshal(v string) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Subscribe upgrades the request to a WebSocket and registers a push
// handler on sessionID's view of path for the data_type query parameter,
// delivering every matching pushed sample to the socket until it
// disconnects.
func (hd *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, path := vars["sessionID"], vars["path"]

	dataType, err := parseDataType(r.URL.Query().Get("data_type"))
	if err != nil {
		http.Error(w, `{"error":"invalid or missing data_type"}`, http.StatusBadRequest)
		return
	}

	conn, err := hd.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hd.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	var ref handler.Ref
	var refSet bool
	client := newClient(context.Background(), hd.wsHub, conn, clientID, path, hd.log, func() {
		if refSet {
			hd.hub.RemovePushHandler(ref)
		}
	})

	deliver := func(s sample.Sample) {
		payload, err := json.Marshal(subscribeEnvelope{Path: path, Sample: s})
		if err != nil {
			hd.log.Error("websocket envelope marshal failed", "error", err)
			return
		}
		client.enqueue(payload)
	}

	ref, err = hd.hub.AddHandler(sessionID, path, dataType, deliver)
	if err != nil {
		hd.log.Warn("websocket subscribe rejected", "session", sessionID, "path", path, "error", err)
		if ipcerr.IsKillClient(err) {
			hd.hub.EndSession(sessionID)
		}
		conn.Close()
		return
	}
	refSet = true

	hd.wsHub.Register(client)
	go client.WritePump()
	client.ReadPump()
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
