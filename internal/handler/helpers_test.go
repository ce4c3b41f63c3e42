package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-progress-api/internal/middleware"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

const studentID = "5b0cdd8e-2c55-4a43-9f6f-4d8f0b4e5c11"

type testEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

// newGinContext builds a test context for method and target. A non-nil body
// is sent as JSON; a non-nil claims value authenticates the request.
func newGinContext(method, target string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: studentID, Role: models.RoleStudent}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

type fakeResolver struct {
	enrollment *models.EnrollmentDetail
	err        error
	byID       map[int64]*models.EnrollmentDetail
	asked      string
}

func (f *fakeResolver) GetActiveByStudent(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	f.asked = id
	if f.err != nil {
		return nil, f.err
	}
	return f.enrollment, nil
}

func (f *fakeResolver) Get(_ context.Context, id int64) (*models.EnrollmentDetail, error) {
	if enrollment, ok := f.byID[id]; ok {
		return enrollment, nil
	}
	return nil, appErrors.ErrEnrollmentNotFound
}

func activeResolver() *fakeResolver {
	enrollment := &models.EnrollmentDetail{
		Enrollment:       models.Enrollment{ID: 7, StudentID: studentID, ProgramID: 1, Status: models.EnrollmentStatusActive},
		ProgramName:      "Informatik",
		Degree:           "B.Sc.",
		NominalSemesters: 6,
		TimeModelName:    "Vollzeit",
	}
	return &fakeResolver{enrollment: enrollment, byID: map[int64]*models.EnrollmentDetail{7: enrollment}}
}
