package drive_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/go-collab-server/drive"
	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/stretchr/testify/require"
)

const upstream = "ya29.upstream"

type fakeFile struct {
	Name     string
	MimeType string
	Parents  []string
	Content  string
}

// fakeDrive implements the handful of Drive v3 endpoints the client uses,
// at the paths the generated API client calls.
type fakeDrive struct {
	mu      sync.Mutex
	files   map[string]*fakeFile
	nextID  int
	queries []string
}

func newFakeDrive(t *testing.T) (*fakeDrive, *drive.Client) {
	f := &fakeDrive{files: map[string]*fakeFile{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /drive/v3/files", f.list)
	mux.HandleFunc("POST /drive/v3/files", f.createMetadata)
	mux.HandleFunc("POST /upload/drive/v3/files", f.createUpload)
	mux.HandleFunc("GET /drive/v3/files/{id}", f.get)
	mux.HandleFunc("GET /drive/v3/files/{id}/export", f.export)
	mux.HandleFunc("PATCH /upload/drive/v3/files/{id}", f.update)
	mux.HandleFunc("DELETE /drive/v3/files/{id}", f.delete)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+upstream {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"Invalid Credentials"}}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return f, drive.New(drive.WithEndpoint(srv.URL+"/drive/v3/"))
}

func (f *fakeDrive) add(file *fakeFile) string {
	f.nextID++
	id := fmt.Sprintf("file-%d", f.nextID)
	f.files[id] = file
	return id
}

func (f *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query().Get("q")
	f.queries = append(f.queries, q)
	type entry struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		WebViewLink string `json:"webViewLink"`
	}
	out := []entry{}
	for id, file := range f.files {
		if !strings.Contains(q, "mimeType='"+file.MimeType+"'") {
			continue
		}
		if strings.Contains(q, "name=") && !strings.Contains(q, "name='"+file.Name+"'") {
			continue
		}
		out = append(out, entry{ID: id, Name: file.Name, WebViewLink: "https://docs.example.com/" + id})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"files": out})
}

func (f *fakeDrive) createMetadata(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var meta fakeFile
	_ = json.NewDecoder(r.Body).Decode(&meta)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": f.add(&meta)})
}

func readMultipart(r *http.Request) (fakeFile, error) {
	var file fakeFile
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/related" {
		return file, fmt.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	if err != nil {
		return file, err
	}
	if err := json.NewDecoder(metaPart).Decode(&file); err != nil {
		return file, err
	}
	mediaPart, err := mr.NextPart()
	if err != nil {
		return file, err
	}
	body, err := io.ReadAll(mediaPart)
	file.Content = string(body)
	return file, err
}

func (f *fakeDrive) createUpload(w http.ResponseWriter, r *http.Request) {
	file, err := readMultipart(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]string{"id": f.add(&file)})
}

func (f *fakeDrive) lookup(w http.ResponseWriter, r *http.Request) (*fakeFile, bool) {
	file, ok := f.files[r.PathValue("id")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"File not found"}}`)
	}
	return file, ok
}

func (f *fakeDrive) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.lookup(w, r); ok {
		_ = json.NewEncoder(w).Encode(map[string]string{"name": file.Name})
	}
}

func (f *fakeDrive) export(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.lookup(w, r); ok {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "\ufeff"+file.Content)
	}
}

func (f *fakeDrive) update(w http.ResponseWriter, r *http.Request) {
	upd, err := readMultipart(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.lookup(w, r); ok {
		file.Name = upd.Name
		file.Content = upd.Content
		_ = json.NewEncoder(w).Encode(map[string]string{"id": r.PathValue("id")})
	}
}

func (f *fakeDrive) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lookup(w, r); ok {
		delete(f.files, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestLetterLifecycle(t *testing.T) {
	fake, client := newFakeDrive(t)
	ctx := context.Background()

	id, err := client.SaveLetter(ctx, upstream, "Dear Bob", "Hello Bob")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	fake.mu.Lock()
	saved := fake.files[id]
	require.Equal(t, "Dear Bob.docx", saved.Name)
	require.Equal(t, "application/vnd.google-apps.document", saved.MimeType)
	require.Equal(t, "Hello Bob", saved.Content)
	require.Len(t, saved.Parents, 1)
	folderID := saved.Parents[0]
	require.Equal(t, drive.LettersFolder, fake.files[folderID].Name)
	fake.mu.Unlock()

	t.Run("folder is reused", func(t *testing.T) {
		second, err := client.SaveLetter(ctx, upstream, "Dear Ann", "Hello Ann")
		require.NoError(t, err)
		fake.mu.Lock()
		defer fake.mu.Unlock()
		require.Equal(t, []string{folderID}, fake.files[second].Parents)
		require.Len(t, fake.files, 3)
	})

	t.Run("list", func(t *testing.T) {
		letters, err := client.ListLetters(ctx, upstream)
		require.NoError(t, err)
		require.Len(t, letters, 2)
		for _, l := range letters {
			require.NotEmpty(t, l.WebViewLink)
		}
	})

	t.Run("get strips suffix and byte order mark", func(t *testing.T) {
		letter, err := client.GetLetter(ctx, upstream, id)
		require.NoError(t, err)
		require.Equal(t, &drive.LetterContent{Title: "Dear Bob", Content: "Hello Bob"}, letter)
	})

	t.Run("update", func(t *testing.T) {
		require.NoError(t, client.UpdateLetter(ctx, upstream, id, "Dear Robert", "Hello Robert"))
		letter, err := client.GetLetter(ctx, upstream, id)
		require.NoError(t, err)
		require.Equal(t, "Dear Robert", letter.Title)
		require.Equal(t, "Hello Robert", letter.Content)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, client.DeleteLetter(ctx, upstream, id))
		_, err := client.GetLetter(ctx, upstream, id)
		require.ErrorIs(t, err, apperrors.ErrNotFound)
		require.ErrorIs(t, client.DeleteLetter(ctx, upstream, id), apperrors.ErrNotFound)
	})
}

func TestListLetters_Empty(t *testing.T) {
	_, client := newFakeDrive(t)
	letters, err := client.ListLetters(context.Background(), upstream)
	require.NoError(t, err)
	require.Empty(t, letters)
	require.NotNil(t, letters)
}

func TestUpstreamRejection(t *testing.T) {
	_, client := newFakeDrive(t)

	_, err := client.ListLetters(context.Background(), "revoked-token")
	var apiErr *drive.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Invalid Credentials", apiErr.Message)
	require.NotErrorIs(t, err, apperrors.ErrNotFound)
}
