package legacy

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxBlogFileSize bounds a single decoded blog file.
const maxBlogFileSize = 32 << 20

var gzipMagic = []byte{0x1f, 0x8b}

// blogFile is one post found under blogs/.
type blogFile struct {
	ID   string
	Path string
}

// DecodeBlogFile returns the JSON document stored at path. .gz files hold
// either base64 text of gzip-compressed JSON or raw gzip.
func DecodeBlogFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(path), ".gz") {
		return raw, nil
	}
	return decodeCompressed(raw)
}

func decodeCompressed(raw []byte) ([]byte, error) {
	compressed := raw
	if !bytes.HasPrefix(raw, gzipMagic) {
		text := bytes.TrimSpace(raw)
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
		n, err := base64.StdEncoding.Decode(decoded, text)
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		compressed = decoded[:n]
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxBlogFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	if len(out) > maxBlogFileSize {
		return nil, fmt.Errorf("decompressed blog exceeds %d bytes", maxBlogFileSize)
	}
	return out, nil
}

// EncodeBlogFile produces the base64+gzip form written by older revisions.
func EncodeBlogFile(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// listBlogFiles finds blogs/<id>.json and blogs/<id>.gz files. When both
// exist for an id the .json file wins.
func listBlogFiles(dir string) ([]blogFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	byID := map[string]blogFile{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".json" && ext != ".gz" {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, ok := byID[id]; ok && strings.EqualFold(filepath.Ext(prev.Path), ".json") {
			continue
		}
		byID[id] = blogFile{ID: id, Path: filepath.Join(dir, name)}
	}

	files := make([]blogFile, 0, len(byID))
	for _, f := range byID {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}
