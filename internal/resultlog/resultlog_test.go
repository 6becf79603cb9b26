package resultlog_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"db-relay/internal/model"
	"db-relay/internal/resultlog"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func sampleLog() model.IntegrationLog {
	return model.IntegrationLog{
		IntegrationID:   "int-1",
		IntegrationName: "users to crm",
		StartedAt:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Success:         true,
		RowsAffected:    3,
		DurationMs:      42,
	}
}

func TestRedisPublisher_Record(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pub := resultlog.NewRedisPublisherWithClient(client, resultlog.RedisConfig{TTL: time.Hour})
	defer pub.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, pub.Channel("int-1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := pub.Record(ctx, sampleLog()); err != nil {
		t.Fatalf("Record: %v", err)
	}

	raw, err := mr.Get(pub.StateKey("int-1"))
	if err != nil {
		t.Fatalf("state key missing: %v", err)
	}
	var got model.IntegrationLog
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatal(err)
	}
	if got.RowsAffected != 3 || !got.Success || got.IntegrationName != "users to crm" {
		t.Errorf("unexpected payload %+v", got)
	}
	if ttl := mr.TTL(pub.StateKey("int-1")); ttl != time.Hour {
		t.Errorf("TTL = %v", ttl)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != raw {
			t.Errorf("published %q, stored %q", msg.Payload, raw)
		}
	case <-time.After(2 * time.Second):
		t.Error("no message published")
	}
}

func TestRedisPublisher_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pub := resultlog.NewRedisPublisherWithClient(client, resultlog.RedisConfig{})
	mr.Close()

	if err := pub.Record(context.Background(), sampleLog()); err == nil {
		t.Error("expected error when redis is down")
	}
}

func TestLogSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := resultlog.LogSink{Log: logger}

	failed := sampleLog()
	failed.Success = false
	failed.Error = "duplicate key"

	_ = sink.Record(context.Background(), sampleLog())
	_ = sink.Record(context.Background(), failed)

	if len(hook.Entries) != 2 {
		t.Fatalf("got %d entries", len(hook.Entries))
	}
	if hook.Entries[0].Level != logrus.InfoLevel || hook.Entries[1].Level != logrus.WarnLevel {
		t.Errorf("levels = %v, %v", hook.Entries[0].Level, hook.Entries[1].Level)
	}
	if hook.LastEntry().Data["error"] != "duplicate key" {
		t.Errorf("error field = %v", hook.LastEntry().Data["error"])
	}
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, model.IntegrationLog) error { return f.err }

func TestMulti(t *testing.T) {
	mem := &resultlog.Memory{}
	boom := errors.New("boom")
	m := resultlog.Multi{failingSink{boom}, mem}

	err := m.Record(context.Background(), sampleLog())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if len(mem.Entries) != 1 {
		t.Errorf("memory sink got %d entries", len(mem.Entries))
	}
}
