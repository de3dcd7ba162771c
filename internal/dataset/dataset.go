package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/csvask/csvask/internal/query"
	"github.com/csvask/csvask/internal/storage"
)

// Local is a dataset file readable from the local filesystem.
type Local struct {
	Source  string
	Path    string
	Format  query.Format
	Size    int64
	cleanup func() error
}

// Cleanup removes any temporary copy made while resolving the source.
func (l Local) Cleanup() error {
	if l.cleanup == nil {
		return nil
	}
	return l.cleanup()
}

// Resolver turns a dataset source into a local file. Local paths pass
// through; s3://bucket/key sources are downloaded through Store.
type Resolver struct {
	Store  storage.ObjectStore
	TmpDir string
}

func (r *Resolver) Resolve(ctx context.Context, source string) (Local, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Local{}, fmt.Errorf("dataset source is required")
	}
	if !storage.IsObjectURL(source) {
		format, err := FormatFor(source)
		if err != nil {
			return Local{}, err
		}
		return Local{Source: source, Path: source, Format: format}, nil
	}

	bucket, key, err := storage.ParseObjectURL(source)
	if err != nil {
		return Local{}, err
	}
	format, err := FormatFor(key)
	if err != nil {
		return Local{}, err
	}
	if r.Store == nil {
		return Local{}, fmt.Errorf("object store is not configured for %q", source)
	}

	info, err := r.Store.Stat(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Local{}, fmt.Errorf("dataset %q: %w", source, err)
		}
		return Local{}, fmt.Errorf("stat dataset %q: %w", source, err)
	}
	reader, err := r.Store.Get(ctx, bucket, key)
	if err != nil {
		return Local{}, fmt.Errorf("fetch dataset %q: %w", source, err)
	}
	defer func() { _ = reader.Close() }()

	workDir, err := os.MkdirTemp(r.TmpDir, "csvask-dataset-")
	if err != nil {
		return Local{}, fmt.Errorf("create dataset temp dir: %w", err)
	}
	localPath := filepath.Join(workDir, path.Base(key))
	if err := writeFile(localPath, reader); err != nil {
		_ = os.RemoveAll(workDir)
		return Local{}, fmt.Errorf("write local copy of %q: %w", source, err)
	}
	return Local{
		Source:  source,
		Path:    localPath,
		Format:  format,
		Size:    info.Size,
		cleanup: func() error { return os.RemoveAll(workDir) },
	}, nil
}

// FormatFor picks the reader from the file extension. Unknown extensions
// are read as CSV and left to the engine's sniffer.
func FormatFor(name string) (query.Format, error) {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".gz", ".zst"} {
		lower = strings.TrimSuffix(lower, suffix)
	}
	switch ext := filepath.Ext(lower); ext {
	case ".csv", ".txt", "":
		return query.FormatCSV, nil
	case ".tsv", ".tab":
		return query.FormatTSV, nil
	case ".parquet", ".pq":
		return query.FormatParquet, nil
	case ".json", ".jsonl", ".ndjson":
		return query.FormatJSON, nil
	case ".xlsx", ".xls":
		return "", fmt.Errorf("unsupported dataset format %q", ext)
	default:
		return query.FormatCSV, nil
	}
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
