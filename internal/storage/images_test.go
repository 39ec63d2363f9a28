package storage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func multipartUpload(t *testing.T, field, filename, contentType string, payload []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if err := req.ParseMultipartForm(MaxImageSize); err != nil {
		t.Fatalf("failed to parse form: %v", err)
	}

	file, fileHeader, err := req.FormFile(field)
	if err != nil {
		t.Fatalf("failed to read form file: %v", err)
	}
	return file, fileHeader
}

func TestSaveAndServeImage(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskImageStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	payload := []byte("fake png bytes")
	file, header := multipartUpload(t, "image", "photo.PNG", "image/png", payload)
	defer file.Close()

	url, err := store.Save(file, header)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if !strings.HasPrefix(url, "/uploads/products/") {
		t.Errorf("url = %q, want /uploads/products/ prefix", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q, want lowercase .png extension", url)
	}

	// The file exists on disk under the configured directory
	rel := strings.TrimPrefix(url, "/uploads/")
	stored, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if !bytes.Equal(stored, payload) {
		t.Error("stored bytes differ from upload")
	}
}

func TestSaveRejectsNonImages(t *testing.T) {
	store, err := NewDiskImageStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	file, header := multipartUpload(t, "image", "notes.txt", "text/plain", []byte("hello"))
	defer file.Close()

	if _, err := store.Save(file, header); err != ErrNotAnImage {
		t.Fatalf("error = %v, want ErrNotAnImage", err)
	}
}

func TestSaveRejectsOversizedUploads(t *testing.T) {
	store, err := NewDiskImageStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	file, header := multipartUpload(t, "image", "big.jpg", "image/jpeg", []byte("x"))
	defer file.Close()

	// Lie about the size the way a hostile client could
	header.Size = MaxImageSize + 1

	if _, err := store.Save(file, header); err != ErrImageTooLarge {
		t.Fatalf("error = %v, want ErrImageTooLarge", err)
	}
}

func TestDeleteRemovesManagedImagesOnly(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskImageStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	file, header := multipartUpload(t, "image", "photo.jpg", "image/jpeg", []byte("bytes"))
	defer file.Close()

	url, err := store.Save(file, header)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := store.Delete(url); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	rel := strings.TrimPrefix(url, "/uploads/")
	if _, err := os.Stat(filepath.Join(dir, rel)); !os.IsNotExist(err) {
		t.Error("file still exists after delete")
	}

	// Deleting again is a no-op
	if err := store.Delete(url); err != nil {
		t.Errorf("second delete = %v, want nil", err)
	}

	// Foreign and traversal URLs are refused
	if err := store.Delete("https://elsewhere.example/image.png"); err != ErrImageNotManaged {
		t.Errorf("foreign url error = %v, want ErrImageNotManaged", err)
	}
	if err := store.Delete("/uploads/../secrets"); err != ErrImageNotManaged {
		t.Errorf("traversal url error = %v, want ErrImageNotManaged", err)
	}
}
