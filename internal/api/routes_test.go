package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"appraisal_go_backend/internal/auth"
	"appraisal_go_backend/internal/database"
	"appraisal_go_backend/internal/models"
	"appraisal_go_backend/internal/services"
	"appraisal_go_backend/internal/utils/broker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	tokens *auth.TokenManager
	users  *services.UserService
}

func setupTestServer(t *testing.T, health HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.InitDB("sqlite", "file:"+uuid.New().String()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	storage, err := services.NewLocalStorageService(t.TempDir())
	require.NoError(t, err)

	userStore := services.NewUserServiceDB(db)
	userService := services.NewUserService(userStore)
	researchService := services.NewResearchService(
		services.NewPaperServiceDB(db),
		userStore,
		storage,
		services.NewPDFTextExtractor(),
		services.NewHeuristicFeatureExtractor(),
		broker.NewBroker(),
	)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	r := gin.New()
	SetupRoutes(r, researchService, userService, tokens, health)
	auth.SetupRoutes(r, userService, tokens)
	return &testServer{router: r, tokens: tokens, users: userService}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, username string) (string, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret1",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.User.ID, resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	s := setupTestServer(t, func(ctx context.Context) error { return nil })

	w := s.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Research Paper Application API is running!", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestHealthReportsStoreFailure(t *testing.T) {
	s := setupTestServer(t, func(ctx context.Context) error { return errors.New("db down") })

	w := s.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decode(t, w)["status"])
}

func TestCreateAndFetchPaper(t *testing.T) {
	s := setupTestServer(t, nil)
	userID, _ := s.register(t, "alice")

	w := s.do(t, http.MethodPost, "/api/research", gin.H{
		"title":      "Graph Neural Networks",
		"abstract":   "We study GNNs.",
		"content":    "Full text",
		"authors":    []gin.H{{"name": "Ada", "affiliation": "Uni"}},
		"keywords":   []string{"gnn", "graphs"},
		"uploadedBy": userID,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode(t, w)
	id, _ := created["_id"].(string)
	assert.True(t, models.IsValidID(id))
	assert.Equal(t, userID, created["uploadedBy"])
	assert.NotEmpty(t, created["uploadDate"])
	assert.NotEmpty(t, created["createdAt"])

	w = s.do(t, http.MethodGet, "/api/research/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	fetched := decode(t, w)
	assert.Equal(t, "Graph Neural Networks", fetched["title"])
	assert.Equal(t, "We study GNNs.", fetched["abstract"])
	assert.Equal(t, "Full text", fetched["content"])
	assert.Equal(t, []interface{}{"gnn", "graphs"}, fetched["keywords"])
	assert.Equal(t, map[string]interface{}{"_id": userID, "username": "alice"}, fetched["uploadedBy"])

	w = s.do(t, http.MethodGet, "/api/research", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0]["_id"])
	assert.Equal(t, map[string]interface{}{"_id": userID, "username": "alice"}, list[0]["uploadedBy"])
}

func TestCreatePaperEchoesSubmittedFields(t *testing.T) {
	s := setupTestServer(t, nil)
	userID, _ := s.register(t, "ivan")

	w := s.do(t, http.MethodPost, "/api/research", gin.H{
		"title":      " A ",
		"abstract":   "B\n",
		"content":    "  body  ",
		"uploadedBy": userID,
		"createdAt":  "2001-01-01T00:00:00Z",
		"updatedAt":  "2001-01-01T00:00:00Z",
		"filePath":   "papers/someone-else.pdf",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode(t, w)
	assert.Equal(t, " A ", created["title"])
	assert.Equal(t, "B\n", created["abstract"])
	assert.Equal(t, "  body  ", created["content"])
	assert.NotContains(t, created, "filePath")
	createdAt, err := time.Parse(time.RFC3339Nano, created["createdAt"].(string))
	require.NoError(t, err)
	assert.True(t, createdAt.After(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), createdAt)

	w = s.do(t, http.MethodGet, "/api/research/"+created["_id"].(string), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	fetched := decode(t, w)
	assert.Equal(t, " A ", fetched["title"])
	assert.Equal(t, "B\n", fetched["abstract"])

	w = s.do(t, http.MethodPost, "/api/research", gin.H{
		"title": "   ", "abstract": "a", "content": "c", "uploadedBy": userID,
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed", decode(t, w)["message"])
}

func TestCreatePaperRejectsMissingFields(t *testing.T) {
	s := setupTestServer(t, nil)
	userID, _ := s.register(t, "bob")

	bodies := []gin.H{
		{"abstract": "a", "content": "c", "uploadedBy": userID},
		{"title": "t", "content": "c", "uploadedBy": userID},
		{"title": "t", "abstract": "a", "uploadedBy": userID},
		{"title": "t", "abstract": "a", "content": "c"},
	}
	for _, body := range bodies {
		w := s.do(t, http.MethodPost, "/api/research", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		assert.Equal(t, "Validation failed", decode(t, w)["message"])
	}

	req := httptest.NewRequest(http.MethodPost, "/api/research", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/research", nil, "")
	assert.Equal(t, "[]", w.Body.String())
}

func TestGetPaperNotFound(t *testing.T) {
	s := setupTestServer(t, nil)

	for _, id := range []string{"000000000000000000000000", "not-an-id"} {
		w := s.do(t, http.MethodGet, "/api/research/"+id, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, gin.H{"message": "Research paper not found"}, gin.H(decode(t, w)))
	}
}

func TestDashboardStats(t *testing.T) {
	s := setupTestServer(t, nil)
	userID, _ := s.register(t, "carol")
	s.register(t, "dave")

	for _, date := range []time.Time{time.Now().UTC(), time.Now().UTC().Add(-30 * 24 * time.Hour)} {
		w := s.do(t, http.MethodPost, "/api/research", gin.H{
			"title": "T", "abstract": "A", "content": "C", "uploadedBy": userID, "uploadDate": date,
		}, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/api/research/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"totalPapers":   float64(2),
		"totalUsers":    float64(2),
		"recentUploads": float64(1),
	}, decode(t, w))
}

func TestExportBibTeX(t *testing.T) {
	s := setupTestServer(t, nil)
	userID, _ := s.register(t, "erin")

	w := s.do(t, http.MethodPost, "/api/research", gin.H{
		"title": "Type Systems", "abstract": "A", "content": "C", "uploadedBy": userID,
		"authors": []gin.H{{"name": "Barbara Liskov"}},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["_id"].(string)

	w = s.do(t, http.MethodGet, "/api/research/"+id+"/bibtex", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/x-bibtex")
	assert.Contains(t, w.Body.String(), "liskov")
	assert.Contains(t, w.Body.String(), "Type Systems")

	w = s.do(t, http.MethodGet, "/api/research/bibtex", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Type Systems")

	w = s.do(t, http.MethodGet, "/api/research/"+models.NewID()+"/bibtex", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsersRequireAuth(t *testing.T) {
	s := setupTestServer(t, nil)
	userID, token := s.register(t, "frank")

	w := s.do(t, http.MethodGet, "/api/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/users", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/users", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "frank", users[0]["username"])

	w = s.do(t, http.MethodGet, "/api/users/"+userID, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/"+models.NewID(), nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode(t, w)["message"])
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func testPDF(t *testing.T, text string) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(40, 10, text)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestUploadPaper(t *testing.T) {
	s := setupTestServer(t, nil)
	userID, token := s.register(t, "grace")

	fields := map[string]string{
		"title":    "Compilers",
		"abstract": "Translating programs",
		"authors":  "Grace Hopper, Jean Sammet",
		"keywords": "compilers, languages",
	}
	body, contentType := multipartUpload(t, fields, "compilers.pdf", testPDF(t, "An admin Dashboard for user reports"))

	req := httptest.NewRequest(http.MethodPost, "/api/research/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var paper models.Paper
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paper))
	assert.Equal(t, "Compilers", paper.Title)
	assert.Equal(t, []models.Author{{Name: "Grace Hopper"}, {Name: "Jean Sammet"}}, paper.Authors)
	assert.Equal(t, []string{"compilers", "languages"}, paper.Keywords)
	assert.Equal(t, userID, paper.UploadedBy.ID)
	assert.Contains(t, paper.Content, "Dashboard")
	assert.Contains(t, paper.ExtractedFeatures.Features, "Admin Panel")
	assert.NotEmpty(t, paper.FilePath)
}

func TestDownloadPaperFile(t *testing.T) {
	s := setupTestServer(t, nil)
	userID, token := s.register(t, "judy")
	file := testPDF(t, "Stored document")

	body, contentType := multipartUpload(t, map[string]string{"title": "T", "abstract": "A"}, "My Paper.pdf", file)
	req := httptest.NewRequest(http.MethodPost, "/api/research/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["_id"].(string)

	w = s.do(t, http.MethodGet, "/api/research/"+id+"/file", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="My_Paper.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, file, w.Body.Bytes())

	w = s.do(t, http.MethodPost, "/api/research", gin.H{
		"title": "T", "abstract": "A", "content": "C", "uploadedBy": userID,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodGet, "/api/research/"+decode(t, w)["_id"].(string)+"/file", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File not found", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/research/"+models.NewID()+"/file", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Research paper not found", decode(t, w)["message"])
}

func TestUploadPaperRejections(t *testing.T) {
	s := setupTestServer(t, nil)
	_, token := s.register(t, "heidi")
	fields := map[string]string{"title": "T", "abstract": "A", "content": "C"}

	tests := []struct {
		name     string
		filename string
		file     []byte
		token    string
		status   int
	}{
		{"no token", "a.pdf", []byte("%PDF-1.4"), "", http.StatusUnauthorized},
		{"no file", "", nil, token, http.StatusBadRequest},
		{"wrong extension", "a.docx", []byte("%PDF-1.4"), token, http.StatusBadRequest},
		{"not a pdf", "a.pdf", []byte("hello"), token, http.StatusBadRequest},
		{"too large", "a.pdf", append([]byte("%PDF-1.4"), make([]byte, services.DefaultMaxUploadBytes)...), token, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, fields, tt.filename, tt.file)
			req := httptest.NewRequest(http.MethodPost, "/api/research/upload", body)
			req.Header.Set("Content-Type", contentType)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestParseAuthors(t *testing.T) {
	assert.Equal(t, []models.Author{}, parseAuthors(""))
	assert.Equal(t, []models.Author{{Name: "A"}, {Name: "B"}}, parseAuthors("A, B,"))
	assert.Equal(t, []models.Author{{Name: "A", Affiliation: "X"}}, parseAuthors(`[{"name":"A","affiliation":"X"}]`))
	assert.Equal(t, []models.Author{{Name: "A"}, {Name: "B"}}, parseAuthors(`["A", "B"]`))
}
