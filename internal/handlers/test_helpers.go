package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/models"
	"github.com/BradenHooton/landmark/internal/services"
	pkghttp "github.com/BradenHooton/landmark/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAdmin places an authenticated admin on the request, as the guard would.
func WithAdmin(req *http.Request, admin *models.Admin) *http.Request {
	return req.WithContext(auth.WithAdmin(req.Context(), admin))
}

// WithChiRouteContext sets URL parameters that chi would normally extract
// from the path.
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks status and content type, then decodes the
// envelope's data field into target.
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to decode response JSON")
	assert.True(t, env.Success, "expected success envelope")

	if target != nil {
		require.NoError(t, json.Unmarshal(env.Data, target), "Failed to decode response data")
	}
}

// AssertErrorResponse checks that response is a failure envelope with the given code
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc            func(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	RefreshFunc          func(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.TokenPair, error)
	LogoutFunc           func(ctx context.Context, refreshToken string, meta services.RequestMeta) error
	UpdateProfileFunc    func(ctx context.Context, adminID, name, email string) (*models.AdminProfile, error)
	ChangePasswordFunc   func(ctx context.Context, adminID, current, next string, meta services.RequestMeta) error
	SetupTwoFactorFunc   func(ctx context.Context, adminID string) (*auth.TOTPSetup, error)
	EnableTwoFactorFunc  func(ctx context.Context, adminID, code string) error
	DisableTwoFactorFunc func(ctx context.Context, adminID, password string) error
}

func (m *MockAuthService) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, in)
	}
	return nil, nil
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.TokenPair, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken, meta)
	}
	return nil, nil
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string, meta services.RequestMeta) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, refreshToken, meta)
	}
	return nil
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, adminID, name, email string) (*models.AdminProfile, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, adminID, name, email)
	}
	return nil, nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, adminID, current, next string, meta services.RequestMeta) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, adminID, current, next, meta)
	}
	return nil
}

func (m *MockAuthService) SetupTwoFactor(ctx context.Context, adminID string) (*auth.TOTPSetup, error) {
	if m.SetupTwoFactorFunc != nil {
		return m.SetupTwoFactorFunc(ctx, adminID)
	}
	return nil, nil
}

func (m *MockAuthService) EnableTwoFactor(ctx context.Context, adminID, code string) error {
	if m.EnableTwoFactorFunc != nil {
		return m.EnableTwoFactorFunc(ctx, adminID, code)
	}
	return nil
}

func (m *MockAuthService) DisableTwoFactor(ctx context.Context, adminID, password string) error {
	if m.DisableTwoFactorFunc != nil {
		return m.DisableTwoFactorFunc(ctx, adminID, password)
	}
	return nil
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	ListFunc      func(ctx context.Context, limit, offset int) ([]*models.AdminProfile, error)
	GetFunc       func(ctx context.Context, id string) (*models.AdminProfile, error)
	CreateFunc    func(ctx context.Context, actor *models.Admin, in services.CreateAdminInput) (*models.AdminProfile, error)
	SetActiveFunc func(ctx context.Context, actor *models.Admin, id string, active bool) error
	UnlockFunc    func(ctx context.Context, actor *models.Admin, id string) error
}

func (m *MockAdminService) List(ctx context.Context, limit, offset int) ([]*models.AdminProfile, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *MockAdminService) Get(ctx context.Context, id string) (*models.AdminProfile, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockAdminService) Create(ctx context.Context, actor *models.Admin, in services.CreateAdminInput) (*models.AdminProfile, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, actor, in)
	}
	return nil, nil
}

func (m *MockAdminService) SetActive(ctx context.Context, actor *models.Admin, id string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, actor, id, active)
	}
	return nil
}

func (m *MockAdminService) Unlock(ctx context.Context, actor *models.Admin, id string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, actor, id)
	}
	return nil
}

// MockInquiryService implements InquiryServiceInterface for testing
type MockInquiryService struct {
	CreateFunc      func(ctx context.Context, actor *models.Admin, in services.CreateInquiryInput) (*models.Inquiry, error)
	GetFunc         func(ctx context.Context, id string) (*models.Inquiry, error)
	ListFunc        func(ctx context.Context, filter models.InquiryFilter) (*services.InquiryPage, error)
	UpdateFunc      func(ctx context.Context, id string, in services.UpdateInquiryInput) (*models.Inquiry, error)
	AddFollowUpFunc func(ctx context.Context, actor *models.Admin, id, note string) (*models.Inquiry, error)
	DeleteFunc      func(ctx context.Context, id string) error
	StatsFunc       func(ctx context.Context) (map[string]int64, error)
}

func (m *MockInquiryService) Create(ctx context.Context, actor *models.Admin, in services.CreateInquiryInput) (*models.Inquiry, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, actor, in)
	}
	return nil, nil
}

func (m *MockInquiryService) Get(ctx context.Context, id string) (*models.Inquiry, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockInquiryService) List(ctx context.Context, filter models.InquiryFilter) (*services.InquiryPage, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return &services.InquiryPage{Items: []*models.Inquiry{}}, nil
}

func (m *MockInquiryService) Update(ctx context.Context, id string, in services.UpdateInquiryInput) (*models.Inquiry, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, in)
	}
	return nil, nil
}

func (m *MockInquiryService) AddFollowUp(ctx context.Context, actor *models.Admin, id, note string) (*models.Inquiry, error) {
	if m.AddFollowUpFunc != nil {
		return m.AddFollowUpFunc(ctx, actor, id, note)
	}
	return nil, nil
}

func (m *MockInquiryService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockInquiryService) Stats(ctx context.Context) (map[string]int64, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return map[string]int64{}, nil
}
