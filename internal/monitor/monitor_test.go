package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"
)

type fakeSource struct {
	fn func(ctx context.Context) (store.MonitorState, error)
}

func (f fakeSource) MonitorState(ctx context.Context) (store.MonitorState, error) {
	return f.fn(ctx)
}

type recordingAnnouncer struct {
	codes []string
}

func (r *recordingAnnouncer) Announce(ctx context.Context, ticket models.Ticket) error {
	r.codes = append(r.codes, ticket.DisplayCode)
	return nil
}

func stateWith(code string, announcedAt time.Time) store.MonitorState {
	return store.MonitorState{
		Current: &models.Ticket{
			DisplayCode:     code,
			Status:          models.StatusInService,
			LastAnnouncedAt: &announcedAt,
		},
		History: []models.Ticket{},
	}
}

func TestAnnounceOncePerCall(t *testing.T) {
	announcedAt := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	source := fakeSource{fn: func(ctx context.Context) (store.MonitorState, error) {
		return stateWith("P-001", announcedAt), nil
	}}
	announcer := &recordingAnnouncer{}
	now := time.Date(2026, 3, 9, 10, 0, 5, 0, time.UTC)

	m := New(source, announcer, Options{Now: func() time.Time { return now }})
	m.Tick(context.Background())
	m.Tick(context.Background())
	m.Tick(context.Background())

	if len(announcer.codes) != 1 {
		t.Fatalf("expected 1 announcement, got %v", announcer.codes)
	}
}

func TestRepeatAnnouncesAgain(t *testing.T) {
	firstAt := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	repeatAt := firstAt.Add(30 * time.Second)
	state := stateWith("P-001", firstAt)
	source := fakeSource{fn: func(ctx context.Context) (store.MonitorState, error) {
		return state, nil
	}}
	announcer := &recordingAnnouncer{}
	now := firstAt.Add(5 * time.Second)

	m := New(source, announcer, Options{Now: func() time.Time { return now }})
	m.Tick(context.Background())

	state = stateWith("P-001", repeatAt)
	m.Tick(context.Background())

	if len(announcer.codes) != 2 {
		t.Fatalf("expected 2 announcements after repeat, got %v", announcer.codes)
	}
}

func TestNoAnnounceWhenIdle(t *testing.T) {
	source := fakeSource{fn: func(ctx context.Context) (store.MonitorState, error) {
		return store.MonitorState{History: []models.Ticket{}}, nil
	}}
	announcer := &recordingAnnouncer{}

	m := New(source, announcer, Options{})
	m.Tick(context.Background())

	if len(announcer.codes) != 0 {
		t.Fatalf("expected no announcements, got %v", announcer.codes)
	}
}

func TestDedupHistoryBounded(t *testing.T) {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	var state store.MonitorState
	source := fakeSource{fn: func(ctx context.Context) (store.MonitorState, error) {
		return state, nil
	}}
	announcer := &recordingAnnouncer{}
	now := base

	m := New(source, announcer, Options{Now: func() time.Time { return now }})
	for i := 0; i < seenLimit+3; i++ {
		state = stateWith("N-00"+string(rune('1'+i)), base.Add(time.Duration(i)*time.Minute))
		m.Tick(context.Background())
	}

	if len(m.seen) != seenLimit {
		t.Fatalf("expected dedup history capped at %d, got %d", seenLimit, len(m.seen))
	}
}

func TestMidnightResetClearsDedup(t *testing.T) {
	announcedAt := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	source := fakeSource{fn: func(ctx context.Context) (store.MonitorState, error) {
		return stateWith("P-001", announcedAt), nil
	}}
	announcer := &recordingAnnouncer{}
	now := time.Date(2026, 3, 9, 23, 59, 30, 0, time.UTC)

	m := New(source, announcer, Options{Now: func() time.Time { return now }})
	m.Tick(context.Background())
	if len(announcer.codes) != 1 {
		t.Fatalf("expected 1 announcement before midnight, got %v", announcer.codes)
	}

	now = time.Date(2026, 3, 10, 0, 0, 30, 0, time.UTC)
	m.Tick(context.Background())

	if len(announcer.codes) != 2 {
		t.Fatalf("expected dedup cleared after midnight, got %v", announcer.codes)
	}
}

func TestOnUpdateReceivesState(t *testing.T) {
	announcedAt := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	source := fakeSource{fn: func(ctx context.Context) (store.MonitorState, error) {
		return stateWith("P-001", announcedAt), nil
	}}

	var got store.MonitorState
	m := New(source, NoopAnnouncer{}, Options{
		Now:      func() time.Time { return announcedAt },
		OnUpdate: func(state store.MonitorState) { got = state },
	})
	m.Tick(context.Background())

	if got.Current == nil || got.Current.DisplayCode != "P-001" {
		t.Fatalf("expected state pushed to display, got %+v", got.Current)
	}
}
