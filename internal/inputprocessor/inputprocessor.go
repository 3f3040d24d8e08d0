// Package inputprocessor turns a CLI argument (raw text, a file, a
// directory or an http(s) URL) into content items ready for curation.
package inputprocessor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
	"curator/internal/util"
)

// Input kinds recorded on Result.
const (
	InputRaw  = "raw"
	InputFile = "file"
	InputURL  = "url"
)

// maxBodyBytes caps what is read from a file or URL.
const maxBodyBytes = 2 << 20

// Result is one piece of content extracted from an input.
type Result struct {
	Item        models.ContentItem
	InputType   string
	ContentType string
	Origin      string // absolute path or URL; empty for raw input
}

// Processor resolves an input string into content.
type Processor interface {
	Process(ctx context.Context, input string) ([]Result, error)
}

// New returns the default processor. The HTTP client follows redirects and
// gives up after timeout.
func New(timeout time.Duration) Processor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("User-Agent", "curator/1.0")
	return &defaultProcessor{http: client}
}

type defaultProcessor struct {
	http *resty.Client
}

// Process returns one result for raw text, a file or a URL, and one result
// per text file for a directory.
func (p *defaultProcessor) Process(ctx context.Context, input string) ([]Result, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &models.InvalidInputError{Field: "input", Reason: "must not be empty"}
	}

	fi, err := os.Stat(input)
	switch {
	case err == nil && fi.IsDir():
		return p.processDir(ctx, input)
	case err == nil:
		res, err := p.processFile(input)
		if err != nil {
			return nil, err
		}
		return []Result{res}, nil
	case !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrInvalid):
		log.WithError(err).WithField("input", input).Debug("stat failed, treating input as text")
	}

	if u, err := url.Parse(input); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		res, err := p.processURL(ctx, u)
		if err != nil {
			return nil, err
		}
		return []Result{res}, nil
	}

	return []Result{{
		Item:        models.ContentItem{Text: input, ContentType: models.ContentTypeText},
		InputType:   InputRaw,
		ContentType: "text/plain; charset=utf-8",
	}}, nil
}

func (p *defaultProcessor) processFile(path string) (Result, error) {
	binary, err := util.IsLikelyBinary(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to inspect file '%s': %w", path, err)
	}
	if binary {
		return Result{}, &models.InvalidInputError{Field: "file", Reason: path + " looks binary; only text content is processed"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return Result{}, fmt.Errorf("permission denied reading file '%s': %w", path, err)
		}
		return Result{}, fmt.Errorf("failed to read file '%s': %w", path, err)
	}
	if len(data) > maxBodyBytes {
		data = data[:maxBodyBytes]
	}
	text, err := util.CleanFileContent(data, path)
	if err != nil {
		return Result{}, err
	}

	contentType := "text/plain; charset=utf-8"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".html" || ext == ".htm" {
		contentType = "text/html"
		text = ExtractText(text)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return Result{
		Item:        models.ContentItem{ID: absPath, Text: text, ContentType: models.ContentTypeText},
		InputType:   InputFile,
		ContentType: contentType,
		Origin:      absPath,
	}, nil
}

func (p *defaultProcessor) processURL(ctx context.Context, u *url.URL) (Result, error) {
	resp, err := p.http.R().SetContext(ctx).Get(u.String())
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch URL '%s': %w", u, err)
	}
	if resp.IsError() {
		hint := resp.Body()
		if len(hint) > 256 {
			hint = hint[:256]
		}
		return Result{}, fmt.Errorf("failed to fetch URL '%s': status %s - body hint: %s", u, resp.Status(), hint)
	}

	body := resp.Body()
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
	}
	text, err := util.CleanFileContent(body, u.String())
	if err != nil {
		return Result{}, err
	}
	contentType := resp.Header().Get("Content-Type")
	if strings.Contains(contentType, "html") {
		text = ExtractText(text)
	}
	return Result{
		Item:        models.ContentItem{ID: u.String(), Text: text, ContentType: models.ContentTypeText, SourceHint: u.Hostname()},
		InputType:   InputURL,
		ContentType: contentType,
		Origin:      u.String(),
	}, nil
}

var textExtensions = map[string]bool{".txt": true, ".md": true, ".html": true, ".htm": true}

// processDir curates every text file below root, in walk order. Unreadable
// or binary files are skipped with a warning.
func (p *defaultProcessor) processDir(ctx context.Context, root string) ([]Result, error) {
	var out []Result
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !textExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		res, err := p.processFile(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping file")
			return nil
		}
		out = append(out, res)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk '%s': %w", root, err)
	}
	if len(out) == 0 {
		return nil, &models.InvalidInputError{Field: "input", Reason: "directory " + root + " has no text files"}
	}
	return out, nil
}

var _ Processor = (*defaultProcessor)(nil)
