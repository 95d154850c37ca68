package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// Object is a photo kept by Memory
type Object struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Memory keeps photos in process memory. Used for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]*Object
}

var _ interfaces.ImageStore = &Memory{}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]*Object)}
}

func (m *Memory) Put(ctx context.Context, issueID types.IssueID, imageID types.ImageID, upload interfaces.ImageUpload) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, upload.Body); err != nil {
		return "", goerr.Wrap(model.ErrStore, "failed to read image",
			goerr.V("cause", err.Error()), goerr.V(model.IssueIDKey, issueID))
	}

	url := memoryURL(issueID, imageID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[url] = &Object{
		ContentType: upload.ContentType,
		Filename:    upload.Filename,
		Data:        buf.Bytes(),
	}

	return url, nil
}

// Get returns a stored photo by the URL Put returned
func (m *Memory) Get(url string) (*Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[url]
	return obj, ok
}

// Delete removes a stored photo
func (m *Memory) Delete(ctx context.Context, issueID types.IssueID, imageID types.ImageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, memoryURL(issueID, imageID))
	return nil
}

// Len returns the number of stored photos
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func memoryURL(issueID types.IssueID, imageID types.ImageID) string {
	return fmt.Sprintf("memory://%s", objectName("", issueID, imageID))
}
