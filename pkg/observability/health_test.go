package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type fakeBus struct {
	err error
}

func (f *fakeBus) Ping(ctx context.Context) error { return f.err }

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker(nil, nil, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	checker.Liveness(rec, req)

	if rec.Code != 200 {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestHealthChecker_Check_Database(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		status := NewHealthChecker(db, nil, nil).Check(context.Background())
		if status.Status != StatusHealthy {
			t.Errorf("Expected healthy, got %s", status.Status)
		}
	})

	t.Run("query failure is unhealthy", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection reset"))

		status := NewHealthChecker(db, nil, nil).Check(context.Background())
		if status.Status != StatusUnhealthy {
			t.Errorf("Expected unhealthy, got %s", status.Status)
		}
	})
}

func TestHealthChecker_Check_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	checker := NewHealthChecker(nil, redisClient, nil)
	status := checker.Check(context.Background())
	if status.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", status.Status)
	}

	// A redis outage degrades readiness but does not fail it
	mr.Close()
	status = checker.Check(context.Background())
	if status.Status != StatusDegraded {
		t.Errorf("Expected degraded after redis outage, got %s", status.Status)
	}
}

func TestHealthChecker_Check_Bus(t *testing.T) {
	checker := NewHealthChecker(nil, nil, &fakeBus{})
	status := checker.Check(context.Background())
	if status.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", status.Status)
	}

	checker = NewHealthChecker(nil, nil, &fakeBus{err: errors.New("disconnected")})
	status = checker.Check(context.Background())
	if status.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy bus to fail readiness, got %s", status.Status)
	}
}

func TestHealthChecker_Readiness_StatusCodes(t *testing.T) {
	checker := NewHealthChecker(nil, nil, &fakeBus{err: errors.New("disconnected")})

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	checker.Readiness(rec, req)

	if rec.Code != 503 {
		t.Errorf("Expected 503, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if status.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", status.Status)
	}
}
