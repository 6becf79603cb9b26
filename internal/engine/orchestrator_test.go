package engine_test

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"db-relay/internal/engine"
	"db-relay/internal/model"
	"db-relay/internal/resultlog"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
)

type memStore struct {
	integrations []model.Integration
	connections  map[string]model.Connection
	mappings     map[string][]model.Mapping
}

func (s *memStore) Integration(_ context.Context, id string) (model.Integration, error) {
	for _, it := range s.integrations {
		if it.ID == id {
			return it, nil
		}
	}
	return model.Integration{}, model.ErrNotFound
}

func (s *memStore) IntegrationsByGroup(_ context.Context, group string) ([]model.Integration, error) {
	var out []model.Integration
	for _, it := range s.integrations {
		if it.GroupName == group {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) Connection(_ context.Context, id string) (model.Connection, error) {
	c, ok := s.connections[id]
	if !ok {
		return model.Connection{}, model.ErrNotFound
	}
	return c, nil
}

func (s *memStore) Mappings(_ context.Context, id string) ([]model.Mapping, error) {
	return s.mappings[id], nil
}

// fakeExecutor fails the integrations named in fail and records the run order.
type fakeExecutor struct {
	fail map[string]string
	ran  []string
}

func (e *fakeExecutor) Run(_ context.Context, req engine.Request) model.RunResult {
	e.ran = append(e.ran, req.Integration)
	if msg, ok := e.fail[req.Integration]; ok {
		return model.RunResult{Error: msg}
	}
	return model.RunResult{Success: true, RowsAffected: 10}
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) OnStart(it model.Integration, index, total int) {
	o.events = append(o.events, "start:"+it.Name)
}

func (o *recordingObserver) OnComplete(it model.Integration, res model.RunResult) {
	o.events = append(o.events, "done:"+it.Name)
}

func (o *recordingObserver) OnError(it model.Integration, res model.RunResult) {
	o.events = append(o.events, "error:"+it.Name)
}

func groupStore() *memStore {
	mapping := []model.Mapping{{SourceColumn: "id", TargetParameter: "id"}}
	return &memStore{
		integrations: []model.Integration{
			{ID: "c", Name: "C", SourceConnectionID: "pg", TargetConnectionID: "my", GroupName: "nightly", ExecutionOrder: 3},
			{ID: "a", Name: "A", SourceConnectionID: "pg", TargetConnectionID: "my", GroupName: "nightly", ExecutionOrder: 1},
			{ID: "b", Name: "B", SourceConnectionID: "pg", TargetConnectionID: "my", GroupName: "nightly", ExecutionOrder: 2},
		},
		connections: map[string]model.Connection{
			"pg": {ID: "pg", DatabaseType: "PostgreSQL", ConnectionString: "src"},
			"my": {ID: "my", DatabaseType: "MySQL", ConnectionString: "dst"},
		},
		mappings: map[string][]model.Mapping{"a": mapping, "b": mapping, "c": mapping},
	}
}

func TestRunGroup_OrdersAndSucceeds(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &resultlog.Memory{}
	log, _ := test.NewNullLogger()
	o := engine.NewOrchestrator(groupStore(), exec, log)
	o.Recorder = rec

	batch := o.RunGroup(context.Background(), "nightly")

	if !batch.Success || batch.TotalRowsAffected != 30 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if batch.Message != "Successfully executed 3 integrations" {
		t.Errorf("message = %q", batch.Message)
	}
	if !reflect.DeepEqual(exec.ran, []string{"A", "B", "C"}) {
		t.Errorf("ran %v", exec.ran)
	}
	if !reflect.DeepEqual(batch.Committed, []string{"a", "b", "c"}) {
		t.Errorf("committed %v", batch.Committed)
	}
	if len(rec.Entries) != 3 {
		t.Errorf("expected 3 logs, got %d", len(rec.Entries))
	}
}

func TestRunGroup_HaltsOnFailure(t *testing.T) {
	exec := &fakeExecutor{fail: map[string]string{"B": "relation \"t\" does not exist"}}
	rec := &resultlog.Memory{}
	obs := &recordingObserver{}
	log, _ := test.NewNullLogger()
	o := engine.NewOrchestrator(groupStore(), exec, log)
	o.Recorder = rec
	o.Observer = obs

	batch := o.RunGroup(context.Background(), "nightly")

	if batch.Success {
		t.Fatal("expected failure")
	}
	want := "Integration 'B' failed: relation \"t\" does not exist. All operations were rolled back."
	if batch.Message != want {
		t.Errorf("message = %q", batch.Message)
	}
	if !reflect.DeepEqual(exec.ran, []string{"A", "B"}) {
		t.Errorf("ran %v; C must not run", exec.ran)
	}
	if len(batch.Results) != 2 || batch.Results[0].Result.RowsAffected != 10 || batch.Results[1].Result.Success {
		t.Errorf("results %+v", batch.Results)
	}
	if !reflect.DeepEqual(batch.Committed, []string{"a"}) {
		t.Errorf("committed %v", batch.Committed)
	}
	if len(rec.Entries) != 1 || rec.Entries[0].IntegrationID != "b" || rec.Entries[0].Success {
		t.Errorf("logs %+v", rec.Entries)
	}
	if !reflect.DeepEqual(obs.events, []string{"start:A", "done:A", "start:B", "error:B"}) {
		t.Errorf("events %v", obs.events)
	}
}

func TestRunGroup_Empty(t *testing.T) {
	log, _ := test.NewNullLogger()
	o := engine.NewOrchestrator(groupStore(), &fakeExecutor{}, log)

	batch := o.RunGroup(context.Background(), "weekly")
	if batch.Success || batch.Message != "No integrations found in group 'weekly'" {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if batch.Results == nil || len(batch.Results) != 0 {
		t.Errorf("results %v", batch.Results)
	}
}

func TestRunMany_Preconditions(t *testing.T) {
	store := groupStore()
	delete(store.mappings, "b")
	exec := &fakeExecutor{}
	log, _ := test.NewNullLogger()
	o := engine.NewOrchestrator(store, exec, log)

	batch := o.RunMany(context.Background(), []string{"b", "a"}, engine.OrderAsGiven)
	if batch.Success || len(exec.ran) != 0 {
		t.Fatalf("unexpected batch %+v, ran %v", batch, exec.ran)
	}
	if !strings.Contains(batch.Message, "no mappings defined for integration 'B'") {
		t.Errorf("message = %q", batch.Message)
	}

	store.mappings["b"] = store.mappings["a"]
	store.connections = map[string]model.Connection{"pg": store.connections["pg"]}
	batch = o.RunMany(context.Background(), []string{"a"}, engine.OrderAsGiven)
	if batch.Success || !strings.Contains(batch.Message, "target connection 'my' not found") {
		t.Errorf("message = %q", batch.Message)
	}

	batch = o.RunMany(context.Background(), []string{"zzz"}, engine.OrderByExecution)
	if batch.Success || len(batch.Results) != 0 {
		t.Errorf("unknown id should abort: %+v", batch)
	}
}

func TestRunMany_KeepsCallerOrderOnTies(t *testing.T) {
	store := groupStore()
	for i := range store.integrations {
		store.integrations[i].ExecutionOrder = 0
	}
	exec := &fakeExecutor{}
	o := engine.NewOrchestrator(store, exec, nil)

	o.RunMany(context.Background(), []string{"c", "a", "b"}, engine.OrderByExecution)
	if !reflect.DeepEqual(exec.ran, []string{"C", "A", "B"}) {
		t.Errorf("ran %v", exec.ran)
	}
}

func TestRunIntegration_WithoutMappings(t *testing.T) {
	store := groupStore()
	store.mappings = nil
	exec := &fakeExecutor{}
	rec := &resultlog.Memory{}
	o := engine.NewOrchestrator(store, exec, nil)
	o.Recorder = rec

	res := o.RunIntegration(context.Background(), "a")
	if !res.Success || len(exec.ran) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(rec.Entries) != 1 || !rec.Entries[0].Success || rec.Entries[0].GroupName != "nightly" {
		t.Errorf("logs %+v", rec.Entries)
	}

	res = o.RunIntegration(context.Background(), "missing")
	if res.Success || !strings.Contains(res.Error, "missing") {
		t.Errorf("unexpected result %+v", res)
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, model.IntegrationLog) error {
	return errors.New("redis: connection refused")
}

func TestRunIntegration_RecorderFailureIsWarned(t *testing.T) {
	log, hook := test.NewNullLogger()
	o := engine.NewOrchestrator(groupStore(), &fakeExecutor{}, log)
	o.Recorder = failingRecorder{}

	if res := o.RunIntegration(context.Background(), "a"); !res.Success {
		t.Fatalf("recorder failure must not fail the run: %+v", res)
	}
	if e := hook.LastEntry(); e == nil || !strings.Contains(e.Message, "failed to record") {
		t.Errorf("expected warning, got %+v", e)
	}
}

func TestRunIntegration_EndToEnd(t *testing.T) {
	conn := newMockConnector()
	src := conn.add(t, "src")
	dst := conn.add(t, "dst")

	src.ExpectQuery(regexp.QuoteMeta("SELECT id FROM a")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	dst.ExpectBegin()
	dst.ExpectExec(regexp.QuoteMeta("INSERT INTO b (id) VALUES (?)")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(7, 1))
	dst.ExpectCommit()

	store := groupStore()
	store.integrations[1].SourceQuery = "SELECT id FROM a"
	store.integrations[1].TargetQuery = "INSERT INTO b (id) VALUES (@id)"

	runner, _ := newRunner(conn)
	o := engine.NewOrchestrator(store, runner, nil)
	res := o.RunIntegration(context.Background(), "a")

	if !res.Success || res.RowsAffected != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := dst.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
