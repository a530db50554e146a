package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"codeduel/internal/common/cache"
	"codeduel/internal/common/db"
	"codeduel/internal/common/mq"
	"codeduel/internal/tournament/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeDB scripts Exec results and single-row answers.
type fakeDB struct {
	affected []int64
	rowErr   error
	execs    []string
	args     [][]interface{}
}

type fakeResult struct{ n int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, nil }

type fakeRow struct{ err error }

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if p, ok := dest[0].(*int); ok {
		*p = 1
	}
	return nil
}

func (f *fakeDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return fakeRow{err: f.rowErr}
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	f.execs = append(f.execs, query)
	f.args = append(f.args, args)
	var n int64
	if len(f.affected) > 0 {
		n = f.affected[0]
		f.affected = f.affected[1:]
	}
	return fakeResult{n: n}, nil
}

func (f *fakeDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return errors.New("not scripted")
}

func (f *fakeDB) BeginTx(ctx context.Context, opts *db.TxOptions) (db.Transaction, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeDB) Ping(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                   { return nil }

func newTestRedis(t *testing.T) (cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	return rc, mr
}

func TestRoomUpdateVersioning(t *testing.T) {
	rc, mr := newTestRedis(t)
	fdb := &fakeDB{affected: []int64{1, 0}}
	repo := NewRoomRepository(fdb, rc)
	ctx := context.Background()

	mr.Set(roomCacheKey("r1"), "stale")
	room := &model.Room{RoomID: "r1", State: model.StateStarted, Version: 7}
	if err := repo.Update(ctx, nil, room); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if room.Version != 8 {
		t.Fatalf("expected version bump, got %d", room.Version)
	}
	if mr.Exists(roomCacheKey("r1")) {
		t.Fatalf("update should invalidate cache")
	}
	if got := fdb.args[0][len(fdb.args[0])-1]; got != int64(7) {
		t.Fatalf("expected WHERE version=7, got %v", got)
	}
	if players := string(fdb.args[0][3].([]byte)); players != "[]" {
		t.Fatalf("nil players must encode as [], got %s", players)
	}

	if err := repo.Update(ctx, nil, room); !errors.Is(err, ErrRoomVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestRoomGetByIDFromCache(t *testing.T) {
	rc, mr := newTestRedis(t)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	want := &model.Room{
		RoomID:         "r1",
		Name:           "finals",
		Admin:          "u1",
		State:          model.StateRoundInProgress,
		Participants:   []model.PlayerRef{{ID: "a"}, {ID: "b"}},
		Players:        []model.PlayerRef{{ID: "b"}, {ID: "a"}},
		OldPlayers:     []model.PlayerRef{},
		RoundNo:        2,
		RoundStartTime: &start,
		Version:        4,
	}
	mr.Set(roomCacheKey("r1"), marshalRoom(want))
	mr.Set(roomCacheKey("ghost"), cache.NullCacheValue)

	repo := NewRoomRepository(&fakeDB{}, rc)
	got, err := repo.GetByID(context.Background(), nil, "r1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "finals" || got.State != model.StateRoundInProgress || got.RoundNo != 2 || got.Version != 4 {
		t.Fatalf("unexpected room: %+v", got)
	}
	if got.RoundStartTime == nil || !got.RoundStartTime.Equal(start) {
		t.Fatalf("unexpected round start: %v", got.RoundStartTime)
	}
	if strings.Join(model.RefIDs(got.Players), ",") != "b,a" {
		t.Fatalf("unexpected players: %+v", got.Players)
	}

	if _, err := repo.GetByID(context.Background(), nil, "ghost"); !errors.Is(err, model.ErrRoomNotFound) {
		t.Fatalf("expected not found from null cache value, got %v", err)
	}
}

func TestRefsCodec(t *testing.T) {
	refs, err := decodeRefs([]byte(`[{"id":"a"},{"id":"b"}]`))
	if err != nil || len(refs) != 2 || refs[1].ID != "b" {
		t.Fatalf("decode failed: %v %+v", err, refs)
	}
	empty, err := decodeRefs(nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("nil column should decode to empty slice")
	}
	if _, err := decodeRefs([]byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPlayerUpdateExisting(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		affected int64
		rowErr   error
		wantErr  error
	}{
		{name: "changed", affected: 1},
		{name: "unchanged but exists", affected: 0},
		{name: "missing", affected: 0, rowErr: sql.ErrNoRows, wantErr: model.ErrPlayerNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fdb := &fakeDB{affected: []int64{tc.affected}, rowErr: tc.rowErr}
			repo := NewPlayerRepository(fdb)
			err := repo.ResetForRound(ctx, nil, "p1", "0001")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if !strings.Contains(fdb.execs[0], "tests_passed = 0") {
				t.Fatalf("unexpected query: %s", fdb.execs[0])
			}
		})
	}

	repo := NewPlayerRepository(&fakeDB{affected: []int64{1}})
	if err := repo.RecordSubmission(ctx, nil, "p1", -1, time.Now()); err == nil {
		t.Fatalf("expected error for negative score")
	}
	if err := repo.RecordSubmission(ctx, nil, "", 1, time.Now()); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

type recordingProducer struct {
	topic string
	msgs  []*mq.Message
	err   error
}

func (p *recordingProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	p.topic = topic
	p.msgs = append(p.msgs, message)
	return p.err
}

func (p *recordingProducer) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	return nil
}
func (p *recordingProducer) Ping(ctx context.Context) error { return nil }
func (p *recordingProducer) Close() error                   { return nil }

func TestMQEventPublisher(t *testing.T) {
	producer := &recordingProducer{}
	pub := NewMQEventPublisher(producer, "rooms", "submissions")
	ctx := context.Background()

	err := pub.PublishRoomEvent(ctx, model.RoomEvent{Type: model.EventRoundStarted, RoomID: "r1", RoundNo: 3})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if producer.topic != "rooms" || producer.msgs[0].ID != "r1" {
		t.Fatalf("unexpected publish target: %s %s", producer.topic, producer.msgs[0].ID)
	}
	if v, _ := producer.msgs[0].GetHeader(eventTypeHeader); v != "round.started" {
		t.Fatalf("unexpected event header %q", v)
	}
	var decoded model.RoomEvent
	if err := json.Unmarshal(producer.msgs[0].Body, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.RoundNo != 3 || decoded.CreatedAt == 0 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}

	if err := pub.PublishRoomEvent(ctx, model.RoomEvent{Type: model.EventRoundStarted}); err == nil {
		t.Fatalf("expected validation error")
	}

	err = pub.PublishSubmissionEvent(ctx, model.SubmissionEvent{Type: model.EventSubmissionJudged, SubmissionID: "s1", PlayerID: "p1"})
	if err != nil || producer.topic != "submissions" {
		t.Fatalf("submission publish failed: %v %s", err, producer.topic)
	}

	producer.err = errors.New("broker down")
	if err := pub.PublishRoomEvent(ctx, model.RoomEvent{Type: model.EventPlayerLeft, RoomID: "r1"}); err == nil {
		t.Fatalf("expected producer error")
	}
}
