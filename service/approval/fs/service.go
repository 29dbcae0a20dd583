package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/viant/gatekeeper/service/approval"
	"github.com/viant/gatekeeper/service/dao"
)

// Service implements filesystem-based approval request storage: one JSON file
// per request, named by code. All lifecycle logic (expiry, one-time use)
// lives in the registry; this layer only loads and saves.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[string, approval.Request] = (*Service)(nil)

// Save persists a request to the filesystem
func (s *Service) Save(ctx context.Context, request *approval.Request) error {
	if request == nil {
		return dao.ErrNilEntity
	}
	if request.Code == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	filePath := s.requestPath(request.Code)
	err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to save request to file %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves a request by code, returning nil when absent.
func (s *Service) Load(ctx context.Context, code string) (*approval.Request, error) {
	if code == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.requestPath(code)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if request exists: %w", err)
	}
	if !exists {
		return nil, nil
	}

	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	var request approval.Request
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request data: %w", err)
	}
	return &request, nil
}

// Delete removes a request file; deleting an absent request is a no-op so the
// registry's lazy sweep stays idempotent.
func (s *Service) Delete(ctx context.Context, code string) error {
	if code == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.requestPath(code)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if request exists: %w", err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete request file: %w", err)
	}
	return nil
}

// List returns all requests, optionally filtered by a Status parameter.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list request files: %w", err)
	}

	var requests []*approval.Request
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		var request approval.Request
		if err := json.Unmarshal(data, &request); err != nil {
			continue
		}
		if !matchesStatus(&request, parameters) {
			continue
		}
		requests = append(requests, &request)
	}
	return requests, nil
}

func matchesStatus(request *approval.Request, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != "Status" {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			return request.Status == actual
		case []string:
			for _, status := range actual {
				if request.Status == status {
					return true
				}
			}
			return false
		}
	}
	return true
}

// requestPath returns the file path for a request code.
func (s *Service) requestPath(code string) string {
	return path.Join(s.basePath, fmt.Sprintf("%s.json", code))
}

// New creates a new filesystem request storage service
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	fs := afs.New()

	// Ensure the base directory exists
	ctx := context.Background()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	basePath = url.Normalize(basePath, file.Scheme)

	return &Service{
		basePath: basePath,
		fs:       fs,
	}, nil
}
