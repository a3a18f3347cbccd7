package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPBlobClient_Upload(t *testing.T) {
	var gotAuth, gotField, gotFilename, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotField = "image"
		gotFilename = header.Filename
		data, _ := io.ReadAll(file)
		gotContent = string(data)
		_, _ = w.Write([]byte(`{"imageUrl":"https://blobs/x.png","imagePath":"x.png"}`))
	}))
	defer srv.Close()

	client := NewHTTPBlobClient(srv.URL, nil)
	result, err := client.Upload(context.Background(), "ticket.png", strings.NewReader("png-bytes"), "tok")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotField != "image" || gotFilename != "ticket.png" || gotContent != "png-bytes" {
		t.Fatalf("unexpected multipart form %q %q %q", gotField, gotFilename, gotContent)
	}
	if result.ImageURL != "https://blobs/x.png" || result.ImagePath != "x.png" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestHTTPBlobClient_UploadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewHTTPBlobClient(srv.URL, nil)
	if _, err := client.Upload(context.Background(), "x.png", strings.NewReader("x"), "tok"); err == nil {
		t.Fatalf("expected error on 403")
	}
}
