package server

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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/partimages/backend/internal/config"
	"github.com/partimages/backend/internal/models"
	"github.com/partimages/backend/internal/services"
	"github.com/partimages/backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) EnsureBucket(context.Context, string) error { return nil }

func (m *memoryStore) Upload(_ context.Context, bucket, key, localPath, _ string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memoryStore) PublicURL(bucket, key string) string {
	return "http://store.test/" + bucket + "/" + key
}

func (m *memoryStore) Open(_ context.Context, bucket, key string) (*services.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return &services.Object{Body: io.NopCloser(bytes.NewReader(data)), ContentLength: int64(len(data))}, nil
}

func (m *memoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	store  *memoryStore
	images *services.ImageService
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := &config.Config{
		Env:                 "development",
		FrontendURL:         "http://localhost:3000",
		MinioBucket:         "images",
		UploadMaxConcurrent: 2,
		UploadMaxFileSize:   1 << 20,
		UploadStagingDir:    t.TempDir(),
		AuthJWTSecret:       secret,
		AllowedOrigins:      []string{"http://localhost:3000"},
		AllowedMethods:      []string{"GET", "POST", "PUT", "DELETE"},
	}

	store := &memoryStore{objects: map[string][]byte{}}
	images := services.NewImageService(db)
	router := NewRouter(Dependencies{
		Config:         cfg,
		ImageService:   images,
		UploadService:  services.NewUploadService(cfg, images, store),
		StorageService: services.NewStorageService(cfg),
		LabelService:   services.NewLabelService(cfg),
		ObjectStore:    store,
	})
	return &testEnv{router: router, db: db, store: store, images: images}
}

func (e *testEnv) request(method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(path, body string) *httptest.ResponseRecorder {
	return e.request(http.MethodPost, path, strings.NewReader(body), map[string]string{"Content-Type": "application/json"})
}

func folderUpload(t *testing.T, partNumber string, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files[]", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	if partNumber != "" {
		require.NoError(t, mw.WriteField("part_number", partNumber))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPublicEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.request(http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Image Database Service")

	w = env.request(http.MethodGet, "/image", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"imageUrl":"https://example.com/image.jpg","description":"Sample image"}`, w.Body.String())

	w = env.request(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRegisterImage(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.postJSON("/upload", `{"filename":"c.jpg","blobUrl":"http://store/c.jpg"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var saved struct {
		Image    models.Image    `json:"image"`
		Metadata models.Metadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, "c.jpg", saved.Image.FileName)
	assert.Equal(t, "http://store/c.jpg", saved.Image.FilePath)
	assert.Equal(t, "application/octet-stream", saved.Image.FileType)
	assert.Equal(t, "images", saved.Image.BucketName)
	assert.Equal(t, "Manual upload", saved.Metadata.Notes)
	assert.Equal(t, "1920x1080", saved.Metadata.Resolution)

	w = env.postJSON("/upload", `{"filename":"c.jpg","blobUrl":"http://store/c.jpg"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicate"`)

	w = env.postJSON("/upload", `{"file_name":"d.jpg","file_path":"http://store/d.jpg","part_number":"P-3"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, env.images.ListImages(context.Background(), "P-3"), 1)
}

func TestRegisterImageValidation(t *testing.T) {
	env := newTestEnv(t, "")

	assert.Equal(t, http.StatusBadRequest, env.postJSON("/upload", `{"blobUrl":"http://store/c.jpg"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.postJSON("/upload", `{"filename":"c.jpg"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.postJSON("/upload", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.postJSON("/upload", `{"filename":"c.jpg","blobUrl":"x","part_number":"a/b"}`).Code)
}

func TestListAndGetImages(t *testing.T) {
	env := newTestEnv(t, "")
	require.Equal(t, http.StatusCreated, env.postJSON("/upload", `{"filename":"a.jpg","blobUrl":"u","part_number":"P-1"}`).Code)
	require.Equal(t, http.StatusCreated, env.postJSON("/upload", `{"filename":"b.jpg","blobUrl":"u","part_number":"P-2"}`).Code)

	w := env.request(http.MethodGet, "/images?part_number=P-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []models.ImageDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "a.jpg", rows[0].FileName)

	w = env.request(http.MethodGet, fmt.Sprintf("/images/%d", rows[0].ImageID), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"part_number":"P-1"`)

	assert.Equal(t, http.StatusNotFound, env.request(http.MethodGet, "/images/999", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.request(http.MethodGet, "/images/abc", nil, nil).Code)

	w = env.request(http.MethodGet, "/images?part_number=none", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListImagesDatabaseDown(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, models.Close(env.db))

	w := env.request(http.MethodGet, "/images", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch images"}`, w.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, env.request(http.MethodGet, "/health", nil, nil).Code)
}

func TestUpdateImage(t *testing.T) {
	env := newTestEnv(t, "")
	require.Equal(t, http.StatusCreated, env.postJSON("/upload", `{"filename":"a.jpg","blobUrl":"u"}`).Code)
	image, err := env.images.FindByFileName(context.Background(), "a.jpg")
	require.NoError(t, err)
	path := fmt.Sprintf("/images/%d", image.ID)
	headers := map[string]string{"Content-Type": "application/json"}

	w := env.request(http.MethodPut, path, strings.NewReader(`{"file_type":"image/png","notes":"edited"}`), headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"file_type":"image/png"`)

	assert.Equal(t, http.StatusBadRequest, env.request(http.MethodPut, path, strings.NewReader(`{}`), headers).Code)
	assert.Equal(t, http.StatusBadRequest, env.request(http.MethodPut, path, strings.NewReader(`[1]`), headers).Code)
	assert.Equal(t, http.StatusBadRequest, env.request(http.MethodPut, path, strings.NewReader(`{"owner":"x"}`), headers).Code)
	assert.Equal(t, http.StatusNotFound,
		env.request(http.MethodPut, "/images/999", strings.NewReader(`{"notes":"x"}`), headers).Code)

	require.Equal(t, http.StatusCreated, env.postJSON("/upload", `{"filename":"b.jpg","blobUrl":"v"}`).Code)
	assert.Equal(t, http.StatusConflict,
		env.request(http.MethodPut, path, strings.NewReader(`{"file_name":"b.jpg"}`), headers).Code)
}

func TestFolderUploadDownloadDelete(t *testing.T) {
	env := newTestEnv(t, "")

	body, contentType := folderUpload(t, "P-9", map[string]string{"front.jpg": "front-bytes", "back.jpg": "back-bytes"})
	w := env.request(http.MethodPost, "/upload-folder", body, map[string]string{"Content-Type": contentType})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Uploaded int                     `json:"uploaded"`
		Results  []services.UploadResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Uploaded)
	assert.Len(t, env.store.objects, 2)

	image, err := env.images.FindByFileName(context.Background(), "front.jpg")
	require.NoError(t, err)
	require.NotNil(t, image)
	assert.Equal(t, "http://store.test/images/P-9/front.jpg", image.FilePath)

	w = env.request(http.MethodGet, fmt.Sprintf("/images/download/%d", image.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "front-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "front.jpg")

	w = env.request(http.MethodDelete, fmt.Sprintf("/images/%d", image.ID), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.store.objects, 1)

	assert.Equal(t, http.StatusNotFound, env.request(http.MethodDelete, fmt.Sprintf("/images/%d", image.ID), nil, nil).Code)

	// a second upload of the same files is absorbed
	body, contentType = folderUpload(t, "P-9", map[string]string{"back.jpg": "back-bytes"})
	w = env.request(http.MethodPost, "/upload-folder", body, map[string]string{"Content-Type": contentType})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicates":1`)
}

func TestFolderUploadRequiresFiles(t *testing.T) {
	env := newTestEnv(t, "")
	body, contentType := folderUpload(t, "P-1", nil)
	w := env.request(http.MethodPost, "/upload-folder", body, map[string]string{"Content-Type": contentType})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPartsAndLabel(t *testing.T) {
	env := newTestEnv(t, "")
	require.Equal(t, http.StatusCreated, env.postJSON("/upload", `{"filename":"a.jpg","blobUrl":"u","part_number":"P-1"}`).Code)

	w := env.request(http.MethodGet, "/parts", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"part_name":"Part P-1"`)
	assert.Contains(t, w.Body.String(), `"image_count":1`)

	w = env.request(http.MethodGet, "/parts/P-1/label.pdf", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	assert.Equal(t, http.StatusNotFound, env.request(http.MethodGet, "/parts/P-404/label.pdf", nil, nil).Code)
}

func TestWritesRequireToken(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.postJSON("/upload", `{"filename":"a.jpg","blobUrl":"u"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// reads stay public
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/images", nil, nil).Code)

	token, err := jwt.GenerateToken("operator", jwt.AccessToken, "secret", time.Hour)
	require.NoError(t, err)
	w = env.request(http.MethodPost, "/upload", strings.NewReader(`{"filename":"a.jpg","blobUrl":"u"}`), map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}
