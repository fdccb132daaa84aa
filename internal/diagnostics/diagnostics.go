// Package diagnostics exposes a node's live routing and gossip state
// over HTTP: a JSON status snapshot, a websocket feed pushing that
// snapshot on an interval, and a Prometheus /metrics endpoint.
package diagnostics

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chordring/overlay/internal/routingstate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Snapshot carries the subset of a node's routing and gossip state
// diagnostics endpoints report.
type Snapshot struct {
	Self          routingstate.Node
	Predecessor   *routingstate.Node
	SuccessorList [routingstate.SuccessorListLength]routingstate.Node
	Gossip        *routingstate.GossipState
}

// StateSource is a live node's view of itself, read fresh on every
// request rather than cached.
type StateSource interface {
	Snapshot() Snapshot
}

// Prober checks whether a node at addr currently answers CHECK_NODE.
// It exists purely to annotate diagnostics output with a liveness
// status; a Handler with no Prober reports StatusUnknown for every
// node rather than skip the field.
type Prober func(addr *net.TCPAddr) bool

// Handler serves the diagnostics HTTP surface.
type Handler struct {
	source  StateSource
	metrics *Metrics

	// Prober is nil-safe: a nil value reports StatusUnknown for every
	// node instead of probing.
	Prober Prober
}

// NewHandler builds a diagnostics Handler over source, reporting the
// counters in metrics.
func NewHandler(source StateSource, metrics *Metrics) *Handler {
	return &Handler{source: source, metrics: metrics}
}

func (h *Handler) statusOf(addr *net.TCPAddr) NodeStatus {
	if h.Prober == nil {
		return StatusUnknown
	}
	if h.Prober(addr) {
		return StatusAlive
	}
	return StatusUnreachable
}

// Register wires every diagnostics route onto engine, including the
// Prometheus scrape endpoint.
func (h *Handler) Register(engine *gin.Engine) {
	engine.GET("/status", h.Status)
	engine.GET("/ring", h.Ring)
	engine.GET("/gossip", h.Gossip)
	engine.GET("/ws", h.WebSocket)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.registry, promhttp.HandlerOpts{})))
}

func nodeJSON(n routingstate.Node) gin.H {
	return gin.H{"id": n.ID.String(), "addr": n.PublicAddr.String()}
}

// nodeJSONWithStatus renders n the same way nodeJSON does, plus a
// cosmetic "status" field from a live CHECK_NODE probe.
func (h *Handler) nodeJSONWithStatus(n routingstate.Node) gin.H {
	j := nodeJSON(n)
	j["status"] = h.statusOf(n.PublicAddr).String()
	return j
}

// Status reports the node's identity and predecessor in one snapshot.
// The successor list is not included; Ring serves it.
func (h *Handler) Status(c *gin.Context) {
	snap := h.source.Snapshot()

	var predecessor interface{}
	if snap.Predecessor != nil {
		predecessor = h.nodeJSONWithStatus(*snap.Predecessor)
	}

	c.JSON(http.StatusOK, gin.H{
		"self":        nodeJSON(snap.Self),
		"predecessor": predecessor,
		"timestamp":   time.Now().Unix(),
	})
}

// Ring reports the node's successor list.
func (h *Handler) Ring(c *gin.Context) {
	snap := h.source.Snapshot()

	successors := make([]gin.H, len(snap.SuccessorList))
	for i, n := range snap.SuccessorList {
		successors[i] = h.nodeJSONWithStatus(n)
	}

	c.JSON(http.StatusOK, gin.H{
		"self":       nodeJSON(snap.Self),
		"successors": successors,
	})
}

// Gossip reports the node's current gossip value, or null if none
// has been received yet.
func (h *Handler) Gossip(c *gin.Context) {
	snap := h.source.Snapshot()

	if snap.Gossip == nil {
		c.JSON(http.StatusOK, gin.H{"data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      snap.Gossip.Data,
		"timestamp": snap.Gossip.TimestampMillis,
	})
}

// WebSocket upgrades the connection and pushes a status snapshot on
// a fixed interval until the client disconnects.
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(h.snapshotPayload()); err != nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(h.snapshotPayload()); err != nil {
			return
		}
	}
}

func (h *Handler) snapshotPayload() gin.H {
	snap := h.source.Snapshot()

	var predecessor interface{}
	if snap.Predecessor != nil {
		predecessor = h.nodeJSONWithStatus(*snap.Predecessor)
	}

	successors := make([]gin.H, len(snap.SuccessorList))
	for i, n := range snap.SuccessorList {
		successors[i] = h.nodeJSONWithStatus(n)
	}

	var gossip interface{}
	if snap.Gossip != nil {
		gossip = gin.H{"data": snap.Gossip.Data, "timestamp": snap.Gossip.TimestampMillis}
	}

	return gin.H{
		"type":        "heartbeat",
		"timestamp":   time.Now().Unix(),
		"self":        nodeJSON(snap.Self),
		"predecessor": predecessor,
		"successors":  successors,
		"gossip":      gossip,
	}
}
