package diagnostics

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chordring/overlay/internal/routingstate"
)

type fixedSource struct {
	snap Snapshot
}

func (f fixedSource) Snapshot() Snapshot { return f.snap }

func testNode(t *testing.T, port int) routingstate.Node {
	t.Helper()
	return routingstate.NewNode(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
}

func TestStatusReportsSelfAndPredecessor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	self := testNode(t, 9000)
	pred := testNode(t, 8000)
	source := fixedSource{snap: Snapshot{Self: self, Predecessor: &pred}}

	h := NewHandler(source, NewMetrics(prometheus.NewRegistry()))
	engine := gin.New()
	h.Register(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["predecessor"] == nil {
		t.Fatalf("expected predecessor present in response")
	}
}

func TestStatusReportsNilPredecessor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	self := testNode(t, 9000)
	source := fixedSource{snap: Snapshot{Self: self, Predecessor: nil}}

	h := NewHandler(source, NewMetrics(prometheus.NewRegistry()))
	engine := gin.New()
	h.Register(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	engine.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["predecessor"] != nil {
		t.Fatalf("expected nil predecessor, got %v", body["predecessor"])
	}
}

func TestRingReportsSuccessorList(t *testing.T) {
	gin.SetMode(gin.TestMode)

	self := testNode(t, 9000)
	var list [routingstate.SuccessorListLength]routingstate.Node
	for i := range list {
		list[i] = testNode(t, 9100+i)
	}
	source := fixedSource{snap: Snapshot{Self: self, SuccessorList: list}}

	h := NewHandler(source, NewMetrics(prometheus.NewRegistry()))
	engine := gin.New()
	h.Register(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ring", nil)
	engine.ServeHTTP(rec, req)

	var body struct {
		Successors []map[string]string `json:"successors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Successors) != routingstate.SuccessorListLength {
		t.Fatalf("expected %d successors, got %d", routingstate.SuccessorListLength, len(body.Successors))
	}
}

func TestGossipReportsNullWhenAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	source := fixedSource{snap: Snapshot{Self: testNode(t, 9000)}}
	h := NewHandler(source, NewMetrics(prometheus.NewRegistry()))
	engine := gin.New()
	h.Register(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gossip", nil)
	engine.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["data"] != nil {
		t.Fatalf("expected null data, got %v", body["data"])
	}
}

func TestRingAnnotatesStatusFromProber(t *testing.T) {
	gin.SetMode(gin.TestMode)

	self := testNode(t, 9000)
	alive := testNode(t, 9100)
	dead := testNode(t, 9101)

	var list [routingstate.SuccessorListLength]routingstate.Node
	list[0] = alive
	list[1] = dead
	for i := 2; i < len(list); i++ {
		list[i] = alive
	}
	source := fixedSource{snap: Snapshot{Self: self, SuccessorList: list}}

	h := NewHandler(source, NewMetrics(prometheus.NewRegistry()))
	h.Prober = func(addr *net.TCPAddr) bool { return addr.Port == alive.PublicAddr.Port }
	engine := gin.New()
	h.Register(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ring", nil)
	engine.ServeHTTP(rec, req)

	var body struct {
		Successors []map[string]string `json:"successors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Successors[0]["status"] != "alive" {
		t.Fatalf("expected alive status, got %v", body.Successors[0]["status"])
	}
	if body.Successors[1]["status"] != "unreachable" {
		t.Fatalf("expected unreachable status, got %v", body.Successors[1]["status"])
	}
}

func TestRingReportsUnknownStatusWithoutProber(t *testing.T) {
	gin.SetMode(gin.TestMode)

	self := testNode(t, 9000)
	var list [routingstate.SuccessorListLength]routingstate.Node
	for i := range list {
		list[i] = testNode(t, 9200+i)
	}
	source := fixedSource{snap: Snapshot{Self: self, SuccessorList: list}}

	h := NewHandler(source, NewMetrics(prometheus.NewRegistry()))
	engine := gin.New()
	h.Register(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ring", nil)
	engine.ServeHTTP(rec, req)

	var body struct {
		Successors []map[string]string `json:"successors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, s := range body.Successors {
		if s["status"] != "unknown" {
			t.Fatalf("expected unknown status with no prober, got %v", s["status"])
		}
	}
}

func TestMetricsEndpointExposesRegisteredCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.LookupsServed.Inc()

	source := fixedSource{snap: Snapshot{Self: testNode(t, 9000)}}
	h := NewHandler(source, metrics)
	engine := gin.New()
	h.Register(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
