package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/config"
	"github.com/mautops/membership-gin/internal/mail"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/mautops/membership-gin/internal/service"
	"github.com/mautops/membership-gin/internal/storage"
	"github.com/mautops/membership-gin/internal/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	pdfData = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	fs     afero.Fs
	tokens *auth.TokenManager
	auth   service.AuthService
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	for _, fn := range mutate {
		fn(cfg)
	}

	db := testutil.NewDB(t)
	logger, _ := testutil.NewLogger()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	fs := afero.NewMemMapFs()

	applicantRepo := repository.NewApplicantRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	notifier := service.NewNotifier(notificationRepo, nil, mail.NewTemplates("IEPSL"), nil, logger)
	authService := service.NewAuthService(db, tokens, bcrypt.MinCost, logger)

	router := SetupRoutes(&Dependencies{
		Config:        cfg,
		Logger:        logger,
		DB:            db,
		Tokens:        tokens,
		Files:         storage.NewLocalFileStoreWithFs(fs, 0),
		Auth:          authService,
		Registration:  service.NewRegistrationService(db, tokens, bcrypt.MinCost, notifier, logger),
		Review:        service.NewReviewService(db, service.NewMembershipIDGenerator("IEPSL"), notifier, logger),
		Query:         service.NewQueryService(applicantRepo, repository.NewAuditLogRepository(db)),
		Statistics:    service.NewStatisticsService(applicantRepo),
		Notifications: service.NewNotificationService(notificationRepo),
	})

	return &testServer{router: router, db: db, fs: fs, tokens: tokens, auth: authService}
}

// envelope 通用响应
type envelope struct {
	Code       int               `json:"code"`
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Detail     string            `json:"detail"`
	Fields     map[string]string `json:"fields"`
	Data       json.RawMessage   `json:"data"`
	Pagination PaginationInfo    `json:"pagination"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.serve(t, req, token)
}

func (s *testServer) serve(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func registerBody(i int) map[string]interface{} {
	return map[string]interface{}{
		"nameWithInitials":   fmt.Sprintf("J. Perera%d", i),
		"fullName":           fmt.Sprintf("Jane Perera%d", i),
		"dateOfBirth":        "1990-05-17",
		"nicNumber":          fmt.Sprintf("%09dV", 100000000+i),
		"gender":             "female",
		"district":           "Colombo",
		"residentialAddress": "12 Galle Road",
		"mobileNumber":       "0771234567",
		"personalEmail":      fmt.Sprintf("jane%d@example.com", i),
		"password":           "s3cret-pass",
	}
}

// register 注册会员,返回申请 ID 和令牌
func (s *testServer) register(t *testing.T, i int) (string, string) {
	t.Helper()

	w, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", registerBody(i))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result struct {
		Member struct {
			ID string `json:"id"`
		} `json:"member"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	return result.Member.ID, result.Token
}

var jsonSteps = map[int]interface{}{
	2: map[string]interface{}{"officeAddress": "1 Office Park", "preferredCommunication": map[string]string{"method": "email", "location": "office"}},
	3: map[string]interface{}{"workExperience": []map[string]interface{}{{"placeOfWork": "Acme", "designation": "Engineer", "natureOfWork": "Design"}}},
	4: map[string]interface{}{"education": []map[string]interface{}{{"institution": "University of Moratuwa", "degree": "BSc", "fieldOfStudy": "Engineering", "graduationYear": 2012}}},
	5: map[string]interface{}{"certifications": []interface{}{}},
	6: map[string]interface{}{"references": []map[string]string{
		{"name": "Ref One", "designation": "Director", "organization": "Acme", "email": "one@example.com", "phone": "0111111111"},
		{"name": "Ref Two", "designation": "Manager", "organization": "Acme", "email": "two@example.com", "phone": "0112222222"},
	}},
	8: map[string]interface{}{"agreed": true, "signature": "Jane Perera"},
}

// submit 完成第 2-8 步,第 7 步不上传文件
func (s *testServer) submit(t *testing.T, token string) {
	t.Helper()
	for step := 2; step <= model.TotalSteps; step++ {
		body := jsonSteps[step]
		var w *httptest.ResponseRecorder
		if step == documentsStep {
			w, _ = s.do(t, http.MethodPost, "/api/v1/registration/steps/7", token, nil)
		} else {
			w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/registration/steps/%d", step), token, body)
		}
		require.Equal(t, http.StatusOK, w.Code, "step %d: %s", step, w.Body.String())
	}
}

// adminToken 创建指定角色的管理员并返回令牌
func (s *testServer) adminToken(t *testing.T, username, role string) string {
	t.Helper()

	_, err := s.auth.SeedAdmin(context.Background(), &service.CreateAdminInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "admin-pass",
		Role:     role,
	})
	require.NoError(t, err)
	result, err := s.auth.LoginAdmin(context.Background(), username, "admin-pass")
	require.NoError(t, err)
	return result.Token
}

type part struct {
	field    string
	filename string
	data     []byte
}

func multipartRequest(t *testing.T, path string, parts ...part) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
