package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(_ context.Context) error { return m.err }

type mockModelStatus struct {
	degraded bool
}

func (m *mockModelStatus) Degraded() bool { return m.degraded }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockModelStatus{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks[CheckVectorStore] != CheckOK {
		t.Errorf("expected vector_store %q, got %q", CheckOK, r.Checks[CheckVectorStore])
	}
	if r.Checks[CheckModel] != CheckOK {
		t.Errorf("expected model %q, got %q", CheckOK, r.Checks[CheckModel])
	}
}

func TestCheck_StoreError(t *testing.T) {
	svc := New(&mockStorePinger{err: errors.New("conn refused")}, &mockModelStatus{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[CheckVectorStore] != CheckError {
		t.Errorf("expected vector_store %q, got %q", CheckError, r.Checks[CheckVectorStore])
	}
	if r.Checks[CheckModel] != CheckOK {
		t.Errorf("expected model %q, got %q", CheckOK, r.Checks[CheckModel])
	}
}

func TestCheck_ModelDegraded(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockModelStatus{degraded: true})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[CheckModel] != CheckDegraded {
		t.Errorf("expected model %q, got %q", CheckDegraded, r.Checks[CheckModel])
	}
}

func TestCheck_StoreErrorWinsOverDegraded(t *testing.T) {
	svc := New(&mockStorePinger{err: errors.New("down")}, &mockModelStatus{degraded: true})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NoModel(t *testing.T) {
	svc := New(&mockStorePinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[CheckModel] != CheckError {
		t.Errorf("expected model %q, got %q", CheckError, r.Checks[CheckModel])
	}
}
