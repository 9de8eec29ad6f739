package availability

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/repository"
	"github.com/carebridge/booking-api/internal/router"
	availabilityService "github.com/carebridge/booking-api/internal/service/availability"
)

// The availability read path registers on the public route group.
var _ router.PublicHandler = (*Handler)(nil)

type fakeProviders struct {
	provider *model.Provider
	schedule *model.OperatingSchedule
}

func (f *fakeProviders) Get(_ context.Context, id uuid.UUID) (*model.Provider, error) {
	if f.provider != nil && f.provider.ID == id {
		return f.provider, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeProviders) GetSchedule(context.Context, uuid.UUID) (*model.OperatingSchedule, error) {
	return f.schedule, nil
}

func (f *fakeProviders) UpsertSchedule(context.Context, *model.OperatingSchedule) error {
	return nil
}

type fakeReservations struct {
	repository.ReservationRepository
}

func (f *fakeReservations) ListActiveInWindow(context.Context, uuid.UUID, time.Time, time.Time) ([]*model.Reservation, error) {
	return nil, nil
}

func TestGetAvailabilityServedWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider := &model.Provider{
		Base:   model.Base{ID: uuid.New()},
		Name:   "Sunny Days Daycare",
		Type:   model.ProviderTypeDaycare,
		Status: model.ProviderStatusActive,
	}
	svc := availabilityService.NewService(
		&fakeProviders{
			provider: provider,
			schedule: &model.OperatingSchedule{
				ProviderID: provider.ID,
				Opening:    "08:00",
				Closing:    "17:00",
				Weekdays:   pq.StringArray{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
			},
		},
		&fakeReservations{},
	)

	engine := gin.New()
	NewHandler(svc).RegisterPublicRoutes(engine.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/"+provider.ID.String()+"/availability?days=7", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"days"`)
}
