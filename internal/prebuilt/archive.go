package prebuilt

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
)

// writeArchive tars and gzips indexDir's contents under "index/" plus a
// prebuilt_metadata.json member at the archive root, into w.
func writeArchive(w io.Writer, indexDir string, metadata ArchiveMetadata) error {
	gz := gzip.NewWriter(w)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errs.NewBackendError("marshaling archive metadata", err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name: archiveMetadataFile,
		Mode: 0o644,
		Size: int64(len(metadataBytes)),
	}); err != nil {
		return errs.NewBackendError("writing archive metadata header", err)
	}
	if _, err := tw.Write(metadataBytes); err != nil {
		return errs.NewBackendError("writing archive metadata", err)
	}

	err = filepath.Walk(indexDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(indexDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		memberName := indexMemberPrefix + filepath.ToSlash(rel)

		if info.IsDir() {
			return tw.WriteHeader(&tar.Header{Name: memberName + "/", Mode: 0o755, Typeflag: tar.TypeDir})
		}

		if err := tw.WriteHeader(&tar.Header{Name: memberName, Mode: 0o644, Size: info.Size()}); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return errs.NewBackendError("packing index directory into archive", err)
	}
	return nil
}

// extractArchive unpacks r (a .tar.gz stream) into destDir, returning the
// archive's metadata member if present.
func extractArchive(r io.Reader, destDir string) (*ArchiveMetadata, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errs.NewIntegrityError("opening archive as gzip", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	var metadata *ArchiveMetadata
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.NewIntegrityError("reading archive entry", err)
		}

		// Guard against path traversal from a malicious or corrupt archive.
		cleanName := filepath.Clean(header.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return nil, errs.NewIntegrityError("archive entry escapes extraction directory: "+header.Name, nil)
		}

		if header.Name == archiveMetadataFile {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, errs.NewIntegrityError("reading archive metadata member", err)
			}
			var m ArchiveMetadata
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, errs.NewIntegrityError("parsing archive metadata", err)
			}
			metadata = &m
			continue
		}

		target := filepath.Join(destDir, cleanName)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, errs.NewBackendError("creating extracted directory", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, errs.NewBackendError("creating extracted file's parent directory", err)
			}
			out, err := os.Create(target)
			if err != nil {
				return nil, errs.NewBackendError("creating extracted file", err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return nil, errs.NewBackendError("writing extracted file", err)
			}
			out.Close()
		}
	}
	return metadata, nil
}

// readArchiveMetadata opens the archive at path just far enough to read
// its metadata member, without extracting the index payload.
func readArchiveMetadata(path string) (*ArchiveMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.NewBackendError("opening archive", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, errs.NewIntegrityError("opening archive as gzip", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, errs.NewIntegrityError("reading archive entry", err)
		}
		if header.Name != archiveMetadataFile {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errs.NewIntegrityError("reading archive metadata member", err)
		}
		var metadata ArchiveMetadata
		if err := json.Unmarshal(data, &metadata); err != nil {
			return nil, errs.NewIntegrityError("parsing archive metadata", err)
		}
		return &metadata, nil
	}
}
