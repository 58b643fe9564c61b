package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	mid "github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/render"
	"github.com/localwebb/backend/pkg/scheduler"
	"github.com/localwebb/backend/pkg/sink"
	"github.com/localwebb/backend/pkg/store"
	"github.com/localwebb/backend/pkg/view"

	"github.com/rabbitmq/amqp091-go"
)

type memStore struct {
	mu          sync.Mutex
	snap        common.Snapshot
	positions   map[string]common.Position
	communities []common.Community
}

func (m *memStore) LoadSnapshot(context.Context, string) (common.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *memStore) UpdateNodePositions(_ context.Context, _ string, updates []common.PositionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		m.positions[u.ID] = common.Position{X: u.X, Y: u.Y}
	}
	return nil
}

func (m *memStore) UpdateCommunities(_ context.Context, _ string, comms []common.Community) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.communities = comms
	return nil
}

type memChannel struct {
	published []amqp091.Publishing
}

func (m *memChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	return amqp091.Queue{Name: name}, nil
}

func (m *memChannel) Publish(_, _ string, _, _ bool, msg amqp091.Publishing) error {
	m.published = append(m.published, msg)
	return nil
}

func twoTriangles() common.Snapshot {
	ids := []string{"a", "b", "c", "d", "e", "f"}
	var snap common.Snapshot
	for _, id := range ids {
		snap.Nodes = append(snap.Nodes, common.GraphNode{ID: id, Label: strings.ToUpper(id)})
	}
	pairs := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"d", "e"}, {"e", "f"}, {"f", "d"}, {"c", "d"}}
	for i, p := range pairs {
		snap.Edges = append(snap.Edges, common.GraphEdge{
			ID:            string(rune('1' + i)),
			Source:        p[0],
			Target:        p[1],
			Predicate:     "KNOWS",
			DateMentioned: "2021-05-01",
		})
	}
	return snap
}

type testEnv struct {
	e     http.Handler
	store *memStore
	sink  *sink.Sink
	app   *mid.App
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := &memStore{snap: twoTriangles(), positions: map[string]common.Position{}}
	snk := sink.New(context.Background(), store.PositionWriter{Storage: st, GraphID: "g"}, sink.DefaultConfig())
	sched := scheduler.New(scheduler.DefaultConfig(), nil)
	app := &mid.App{
		Store:   st,
		GraphID: "g",
		View:    view.New(sched, snk, view.DefaultPolicy(), render.DefaultConfig()),
	}
	return &testEnv{e: NewEcho(app), store: st, sink: snk, app: app}
}

func (env *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

type graphBody struct {
	Message  string       `json:"message"`
	Decision string       `json:"decision"`
	Graph    render.Graph `json:"graph"`
	Layout   view.Status  `json:"layout"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/health", ""); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected metrics to be served, got %d", rec.Code)
	}
}

func TestGetGraph_SchedulesAndPersistsLayout(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/graph?zoom=0.5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[graphBody](t, rec)
	if body.Decision != string(view.Scheduled) {
		t.Fatalf("expected a scheduled layout, got %q", body.Decision)
	}
	if len(body.Graph.Nodes) != 6 || len(body.Graph.Edges) != 7 {
		t.Fatalf("unexpected graph size %d/%d", len(body.Graph.Nodes), len(body.Graph.Edges))
	}
	if body.Layout.Pending || body.Layout.Fallback {
		t.Fatalf("expected a finished synchronous layout, got %+v", body.Layout)
	}

	if err := env.sink.Wait(); err != nil {
		t.Fatalf("unexpected sink error: %v", err)
	}
	if len(env.store.positions) != 6 {
		t.Fatalf("expected 6 persisted positions, got %d", len(env.store.positions))
	}
}

func TestGetGraph_InvalidZoom(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/api/graph?zoom=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetGraphDetail(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/graph", "")

	rec := env.do(http.MethodGet, "/api/graph/detail?zoom=0.1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[struct {
		Detail render.Detail `json:"detail"`
	}](t, rec)
	if body.Detail.ShowEdges {
		t.Fatal("expected edges hidden at low zoom")
	}
	if !body.Detail.ShowMinimap {
		t.Fatal("expected the minimap for a small graph")
	}
}

func TestUpdatePositions(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/graph", "")
	if err := env.sink.Wait(); err != nil {
		t.Fatalf("unexpected sink error: %v", err)
	}

	tests := []struct {
		name string
		body string
		code int
	}{
		{"Valid", `[{"id":"a","x":12.5,"y":-4}]`, http.StatusAccepted},
		{"UnknownSkipped", `[{"id":"zz","x":1,"y":1},{"id":"b","x":3,"y":4}]`, http.StatusAccepted},
		{"Empty", `[]`, http.StatusBadRequest},
		{"MissingID", `[{"x":1,"y":2}]`, http.StatusBadRequest},
		{"NotJSON", `{`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := env.do(http.MethodPost, "/api/graph/positions", tc.body); rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}

	if err := env.sink.Wait(); err != nil {
		t.Fatalf("unexpected sink error: %v", err)
	}
	if got := env.store.positions["a"]; got != (common.Position{X: 12.5, Y: -4}) {
		t.Fatalf("expected a to be persisted at the dropped position, got %+v", got)
	}
	if got := env.store.positions["b"]; got != (common.Position{X: 3, Y: 4}) {
		t.Fatalf("expected b to be persisted, got %+v", got)
	}
}

func TestQueueLayout(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodPost, "/api/graph/layout", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a queue, got %d", rec.Code)
	}

	ch := &memChannel{}
	env.app.Queue = ch
	if rec := env.do(http.MethodPost, "/api/graph/layout", `{"communities":true}`); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(ch.published) != 1 || string(ch.published[0].Body) != `{"graph_id":"g","communities":true}` {
		t.Fatalf("unexpected published messages %+v", ch.published)
	}
}

func TestRelayout(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/graph", "")
	rec := env.do(http.MethodPost, "/api/graph/relayout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a synchronous relayout, got %d", rec.Code)
	}
}

func TestDetectCommunities(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/graph", "")

	rec := env.do(http.MethodPost, "/api/graph/communities", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[graphBody](t, rec)
	if len(body.Graph.Communities) != 2 {
		t.Fatalf("expected 2 communities, got %d", len(body.Graph.Communities))
	}
	if len(env.store.communities) != 2 {
		t.Fatalf("expected communities to be stored, got %d", len(env.store.communities))
	}
	for _, n := range body.Graph.Nodes {
		if n.CommunityColor == "" {
			t.Fatalf("expected %s to be coloured", n.ID)
		}
	}
}

func TestSetFilter(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/graph", "")

	rec := env.do(http.MethodPost, "/api/graph/filter", `{"from":"2022-01-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[graphBody](t, rec)
	if len(body.Graph.Edges) != 0 {
		t.Fatalf("expected every dated edge to be filtered out, got %d", len(body.Graph.Edges))
	}

	if rec := env.do(http.MethodPost, "/api/graph/filter", `{"from":"2022-01-01","to":"2020-01-01"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an inverted range, got %d", rec.Code)
	}
}

func TestLatestBackup_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/api/graph/backup", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
