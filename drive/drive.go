// Package drive stores letters as Google Docs in the signed-in user's Drive,
// using the upstream access token carried by an admitted credential.
package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	LettersFolder = "Letters"

	mimeFolder    = "application/vnd.google-apps.folder"
	mimeDocument  = "application/vnd.google-apps.document"
	mimePlainText = "text/plain"
	letterSuffix  = ".docx"
)

// Letter is a document listed from Drive.
type Letter struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink,omitempty"`
}

// LetterContent is a letter's title and plain text body.
type LetterContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// APIError is a non-2xx response from Drive.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive api: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return apperrors.ErrNotFound
	}
	return nil
}

type Client struct {
	endpoint string
}

type Option func(*Client)

// WithEndpoint points the client at another Drive compatible API root, such
// as "http://127.0.0.1:8080/drive/v3/". Uploads go to /upload/drive/v3 on
// the same host.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

func New(options ...Option) *Client {
	c := &Client{}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// SaveLetter creates a Google Doc from content inside the Letters folder,
// creating the folder on first use, and returns the new file id.
func (c *Client) SaveLetter(ctx context.Context, upstreamToken, title, content string) (string, error) {
	srv, err := c.service(ctx, upstreamToken)
	if err != nil {
		return "", err
	}

	folderID, err := ensureFolder(ctx, srv)
	if err != nil {
		return "", err
	}

	meta := &drivev3.File{
		Name:     title + letterSuffix,
		MimeType: mimeDocument,
		Parents:  []string{folderID},
	}
	created, err := srv.Files.Create(meta).
		Media(strings.NewReader(content), googleapi.ContentType(mimePlainText)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", errors.Wrapf(apiError(err), "save letter %q", title)
	}
	return created.Id, nil
}

// ListLetters returns every Google Doc visible to the token.
func (c *Client) ListLetters(ctx context.Context, upstreamToken string) ([]Letter, error) {
	srv, err := c.service(ctx, upstreamToken)
	if err != nil {
		return nil, err
	}

	list, err := srv.Files.List().
		Q(fmt.Sprintf("mimeType='%s'", mimeDocument)).
		Fields("files(id, name, webViewLink)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrap(apiError(err), "list letters")
	}

	letters := make([]Letter, 0, len(list.Files))
	for _, f := range list.Files {
		letters = append(letters, Letter{ID: f.Id, Name: f.Name, WebViewLink: f.WebViewLink})
	}
	return letters, nil
}

// GetLetter returns the title without its .docx suffix and the document
// exported as plain text.
func (c *Client) GetLetter(ctx context.Context, upstreamToken, fileID string) (*LetterContent, error) {
	srv, err := c.service(ctx, upstreamToken)
	if err != nil {
		return nil, err
	}

	meta, err := srv.Files.Get(fileID).Fields("name").Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(apiError(err), "get letter %s", fileID)
	}

	resp, err := srv.Files.Export(fileID, mimePlainText).Context(ctx).Download()
	if err != nil {
		return nil, errors.Wrapf(apiError(err), "export letter %s", fileID)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read letter %s", fileID)
	}

	return &LetterContent{
		Title:   strings.TrimSuffix(meta.Name, letterSuffix),
		Content: strings.TrimPrefix(string(body), "\ufeff"),
	}, nil
}

// UpdateLetter replaces the title and body of an existing letter.
func (c *Client) UpdateLetter(ctx context.Context, upstreamToken, fileID, title, content string) error {
	srv, err := c.service(ctx, upstreamToken)
	if err != nil {
		return err
	}

	_, err = srv.Files.Update(fileID, &drivev3.File{Name: title + letterSuffix}).
		Media(strings.NewReader(content), googleapi.ContentType(mimePlainText)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return errors.Wrapf(apiError(err), "update letter %s", fileID)
	}
	return nil
}

func (c *Client) DeleteLetter(ctx context.Context, upstreamToken, fileID string) error {
	srv, err := c.service(ctx, upstreamToken)
	if err != nil {
		return err
	}
	if err := srv.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return errors.Wrapf(apiError(err), "delete letter %s", fileID)
	}
	return nil
}

// service builds a Drive client that authorises every call with the
// caller's upstream token.
func (c *Client) service(ctx context.Context, upstreamToken string) (*drivev3.Service, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: upstreamToken, TokenType: "Bearer"})),
	}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	srv, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create drive service")
	}
	return srv, nil
}

func ensureFolder(ctx context.Context, srv *drivev3.Service) (string, error) {
	found, err := srv.Files.List().
		Q(fmt.Sprintf("name='%s' and mimeType='%s'", LettersFolder, mimeFolder)).
		Fields("files(id)").
		Context(ctx).
		Do()
	if err != nil {
		return "", errors.Wrap(apiError(err), "find letters folder")
	}
	if len(found.Files) > 0 {
		return found.Files[0].Id, nil
	}

	created, err := srv.Files.Create(&drivev3.File{Name: LettersFolder, MimeType: mimeFolder}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", errors.Wrap(apiError(err), "create letters folder")
	}
	return created.Id, nil
}

// apiError turns a googleapi.Error into an APIError so callers can match
// ErrNotFound without importing googleapi.
func apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message}
	}
	return err
}
