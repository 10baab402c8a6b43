package pdf

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
)

var safeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Library stores downloaded PDFs under a root directory, one file per
// article, and opens them with the configured viewer.
type Library struct {
	root   string
	reader string
}

// NewLibrary creates a library rooted at dir. reader selects the viewer
// ("system", "skim", "preview", "zathura", "evince", "okular").
func NewLibrary(dir, reader string) *Library {
	if reader == "" {
		reader = "system"
	}
	return &Library{root: dir, reader: reader}
}

// Path returns where the PDF for an article id (PMID or DOI) lives.
func (l *Library) Path(id string) string {
	return filepath.Join(l.root, safeName.ReplaceAllString(id, "_")+".pdf")
}

// Exists reports whether a PDF for id has already been stored.
func (l *Library) Exists(id string) bool {
	info, err := os.Stat(l.Path(id))
	return err == nil && !info.IsDir()
}

// Save writes data as the PDF for id and returns its path. The file is
// written to a temp name first so a partial download never shadows a
// good copy.
func (l *Library) Save(id string, data []byte) (string, error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}
	if l.root == "" {
		return "", fmt.Errorf("pdf_dir not configured")
	}
	if err := os.MkdirAll(l.root, 0755); err != nil {
		return "", fmt.Errorf("creating pdf dir: %w", err)
	}

	path := l.Path(id)
	tmp, err := os.CreateTemp(l.root, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing PDF: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storing PDF: %w", err)
	}
	return path, nil
}

// Open launches the configured viewer on a stored PDF.
func (l *Library) Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PDF file does not exist: %s", path)
		}
		return fmt.Errorf("checking PDF file: %w", err)
	}

	cmd, err := l.command(runtime.GOOS, path)
	if err != nil {
		return err
	}
	return cmd.Start()
}

func (l *Library) command(goos, path string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		switch l.reader {
		case "skim":
			return exec.Command("open", "-a", "Skim", path), nil
		case "preview":
			return exec.Command("open", "-a", "Preview", path), nil
		default:
			return exec.Command("open", path), nil
		}
	case "linux":
		switch l.reader {
		case "zathura", "evince", "okular":
			return exec.Command(l.reader, path), nil
		default:
			return exec.Command("xdg-open", path), nil
		}
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
