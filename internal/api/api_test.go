package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/escalation"
	"github.com/petpulse/petpulse-go/internal/logger"
)

// stubIntake records enqueued observations and can be primed to fail.
type stubIntake struct {
	mu   sync.Mutex
	err  error
	seen []escalation.Observation
}

func (s *stubIntake) Enqueue(_ context.Context, obs escalation.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seen = append(s.seen, obs)
	return nil
}

func (s *stubIntake) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *stubIntake) last() escalation.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[len(s.seen)-1]
}

// apiFixture wires the controller against a real sqlite-backed store and a
// stub intake.
type apiFixture struct {
	e        *echo.Echo
	repo     repository.AlertRepository
	contacts repository.ContactRepository
	cache    *escalation.CachedContacts
	intake   *stubIntake
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger:         gorm_logger.Default.LogMode(gorm_logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.Pet{},
		&entities.Alert{},
		&entities.QuickAction{},
		&entities.EmergencyContact{},
	))

	f := &apiFixture{
		e:        echo.New(),
		repo:     repository.NewAlertRepository(db),
		contacts: repository.NewContactRepository(db),
		intake:   &stubIntake{},
	}
	f.cache = escalation.NewCachedContacts(f.contacts, time.Minute)

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	New(f.e, f.repo, f.contacts, f.cache, f.intake, nil, log)
	return f
}

// do runs one request through the full router. A string body is sent raw,
// anything else non-nil is marshaled to JSON.
func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (f *apiFixture) addPet(t *testing.T, id, name string) *entities.Pet {
	t.Helper()
	pet := &entities.Pet{ID: id, Name: name, Species: "dog"}
	require.NoError(t, f.repo.CreatePet(t.Context(), pet))
	return pet
}

// addAlert opens an alert through the store so the pet aggregate moves the
// way it does in production. Any previously open row gets marked escalated.
func (f *apiFixture) addAlert(t *testing.T, petID, alertID, severity string) *entities.Alert {
	t.Helper()
	alert := &entities.Alert{
		ID:            alertID,
		PetID:         petID,
		AlertType:     entities.AlertTypeVocalization,
		Severity:      severity,
		SeverityLevel: severity,
		Message:       "Excessive barking",
		Outcome:       entities.OutcomePending,
		ObservedAt:    time.Now().UTC(),
	}
	_, err := f.repo.OpenOrEscalate(t.Context(), alert)
	require.NoError(t, err)
	return alert
}

func (f *apiFixture) addContact(t *testing.T, id, name string, priority int) *entities.EmergencyContact {
	t.Helper()
	contact := &entities.EmergencyContact{
		ID:          id,
		Name:        name,
		ContactType: "neighbor",
		Phone:       "+15550100",
		Priority:    priority,
		IsActive:    true,
	}
	require.NoError(t, f.contacts.CreateContact(t.Context(), contact))
	return contact
}
