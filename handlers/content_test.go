package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"academy-svc/middleware"
	"academy-svc/models"
	"academy-svc/storage"
)

// Fake object store for testing.
type fakeObjectStore struct {
	listFunc    func(ctx context.Context, prefix string) ([]storage.Object, error)
	presignFunc func(ctx context.Context, key string, expires time.Duration) (string, error)
}

func (f *fakeObjectStore) ListObjects(ctx context.Context, prefix string) ([]storage.Object, error) {
	if f.listFunc != nil {
		return f.listFunc(ctx, prefix)
	}
	return nil, nil
}

func (f *fakeObjectStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	if f.presignFunc != nil {
		return f.presignFunc(ctx, key, expires)
	}
	return "https://storage.test/" + key, nil
}

type contentListResponse struct {
	Items   []models.ContentItem `json:"items"`
	Warning string               `json:"warning"`
}

func setupContentTest(t *testing.T, store *fakeObjectStore, purchase *models.Purchase) (sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewContentHandler(db, store, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Stand-in for the entitlement gate: expose the verified purchase.
	inject := func(c *gin.Context) {
		c.Set(middleware.ContextPurchaseKey, purchase)
	}
	router.GET("/content/:bundleType", inject, handler.ListBundleContent)
	router.GET("/content/:bundleType/download", inject, handler.DownloadContent)

	return mock, router
}

func TestContentHandler_MergedListing(t *testing.T) {
	store := &fakeObjectStore{
		listFunc: func(ctx context.Context, prefix string) ([]storage.Object, error) {
			switch prefix {
			case "bma-bundle":
				return []storage.Object{
					{Key: "bma-bundle/workbook.pdf", Name: "workbook.pdf", Size: 1024},
				}, nil
			case models.AddonPrefix:
				return []storage.Object{
					{Key: "ai-prompts/styles.pdf", Name: "styles.pdf", Size: 256},
				}, nil
			}
			return nil, nil
		},
	}
	mock, router := setupContentTest(t, store, &models.Purchase{BundleType: "bma-bundle", IncludesAddon: true})

	mock.ExpectQuery("SELECT id, bundle_type, title, url, description FROM bundle_links").
		WithArgs("bma-bundle").
		WillReturnRows(sqlmock.NewRows([]string{"id", "bundle_type", "title", "url", "description"}).
			AddRow(1, "bma-bundle", "Video Library", "https://example.com/videos", "Streaming access"))

	req := httptest.NewRequest(http.MethodGet, "/content/bma-bundle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp contentListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(resp.Items))
	}
	// Files first, then links, then add-on files.
	wantKinds := []models.ContentItemKind{models.ContentItemFile, models.ContentItemLink, models.ContentItemAddonFile}
	for i, kind := range wantKinds {
		if resp.Items[i].Kind != kind {
			t.Errorf("Item %d: expected kind %q, got %q", i, kind, resp.Items[i].Kind)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

// One source failing must not hide what the other returned.
func TestContentHandler_PartialFailure(t *testing.T) {
	store := &fakeObjectStore{
		listFunc: func(ctx context.Context, prefix string) ([]storage.Object, error) {
			return nil, errors.New("storage unavailable")
		},
	}
	mock, router := setupContentTest(t, store, &models.Purchase{BundleType: "bma-bundle"})

	mock.ExpectQuery("SELECT id, bundle_type, title, url, description FROM bundle_links").
		WithArgs("bma-bundle").
		WillReturnRows(sqlmock.NewRows([]string{"id", "bundle_type", "title", "url", "description"}).
			AddRow(1, "bma-bundle", "Bundle Files", "https://example.com/x", ""))

	req := httptest.NewRequest(http.MethodGet, "/content/bma-bundle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp contentListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("Expected exactly 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].Kind != models.ContentItemLink {
		t.Errorf("Expected kind %q, got %q", models.ContentItemLink, resp.Items[0].Kind)
	}
	if resp.Warning != "" {
		t.Errorf("Expected no warning on partial success, got %q", resp.Warning)
	}
}

func TestContentHandler_AllSourcesFail(t *testing.T) {
	store := &fakeObjectStore{
		listFunc: func(ctx context.Context, prefix string) ([]storage.Object, error) {
			return nil, errors.New("storage unavailable")
		},
	}
	mock, router := setupContentTest(t, store, &models.Purchase{BundleType: "bma-bundle"})

	mock.ExpectQuery("SELECT id, bundle_type, title, url, description FROM bundle_links").
		WithArgs("bma-bundle").
		WillReturnError(errors.New("db down"))

	req := httptest.NewRequest(http.MethodGet, "/content/bma-bundle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status %d, got %d", http.StatusBadGateway, w.Code)
	}
}

// An empty bundle is a configuration problem, not an error.
func TestContentHandler_EmptyBundleWarns(t *testing.T) {
	store := &fakeObjectStore{}
	mock, router := setupContentTest(t, store, &models.Purchase{BundleType: "video-bundle"})

	mock.ExpectQuery("SELECT id, bundle_type, title, url, description FROM bundle_links").
		WithArgs("video-bundle").
		WillReturnRows(sqlmock.NewRows([]string{"id", "bundle_type", "title", "url", "description"}))

	req := httptest.NewRequest(http.MethodGet, "/content/video-bundle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp contentListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("Expected empty items, got %d", len(resp.Items))
	}
	if resp.Warning == "" {
		t.Error("Expected an operator-facing warning for an unconfigured bundle")
	}
}

func TestContentHandler_DownloadOutsideBundle(t *testing.T) {
	store := &fakeObjectStore{}
	_, router := setupContentTest(t, store, &models.Purchase{BundleType: "bma-bundle"})

	req := httptest.NewRequest(http.MethodGet, "/content/bma-bundle/download?key=other-bundle/secret.pdf", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestContentHandler_DownloadPresigned(t *testing.T) {
	store := &fakeObjectStore{}
	_, router := setupContentTest(t, store, &models.Purchase{BundleType: "bma-bundle"})

	req := httptest.NewRequest(http.MethodGet, "/content/bma-bundle/download?key=bma-bundle/workbook.pdf", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["url"] != "https://storage.test/bma-bundle/workbook.pdf" {
		t.Errorf("Unexpected download URL: %s", resp["url"])
	}
}
