package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmorgan81/imagen/internal/config"
	"github.com/dmorgan81/imagen/internal/log"
	"github.com/samber/do"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Object is an archived image and the metadata it was stored with.
type Object struct {
	Name     string
	Metadata map[string]string
	Updated  time.Time
}

type Archive interface {
	Upload(context.Context, UploadParams) error
	List(context.Context) ([]Object, error)
}

type Invalidator interface {
	Invalidate(context.Context, []string) error
}

// IsListed reports whether an archived key belongs in listings. The
// rolling "latest" copies are skipped.
func IsListed(name string) bool {
	if strings.HasPrefix(name, "latest") {
		return false
	}
	switch filepath.Ext(name) {
	case ".png", ".jpg", ".gif", ".webp":
		return true
	}
	return false
}

const metadataSuffix = ".meta.json"

// FileArchive stores images in a local directory with a JSON sidecar
// holding the metadata.
type FileArchive struct {
	Dir string
}

func NewFileArchive(i *do.Injector) (Archive, error) {
	return &FileArchive{Dir: do.MustInvoke[config.Config](i).ArchiveDir}, nil
}

func (a *FileArchive) Upload(ctx context.Context, params UploadParams) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	log.Info("writing", "dir", a.Dir, "file", params.Name)

	if err := os.MkdirAll(a.Dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(a.Dir, params.Name), params.Data, 0o600); err != nil {
		return err
	}
	meta, err := json.Marshal(params.Metadata)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(a.Dir, params.Name+metadataSuffix), meta, 0o600)
}

func (a *FileArchive) List(ctx context.Context) ([]Object, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	log.Debug("listing archive", "dir", a.Dir)

	entries, err := os.ReadDir(a.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var objects []Object
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !IsListed(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}

		meta := map[string]string{}
		raw, err := os.ReadFile(filepath.Join(a.Dir, name+metadataSuffix))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := json.Unmarshal(raw, &meta); err != nil {
				return nil, fmt.Errorf("metadata for %s: %w", name, err)
			}
		}
		objects = append(objects, Object{Name: name, Metadata: meta, Updated: info.ModTime()})
	}
	return objects, nil
}

type NopInvalidator struct{}

func (NopInvalidator) Invalidate(context.Context, []string) error {
	return nil
}
