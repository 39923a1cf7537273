package agent

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ultronlabs/ultron/internal/fileops"
	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

// maxDocumentBytes caps how much document text is held in shared state.
const maxDocumentBytes = 200_000

// Reader loads reference documents into the shared state so the planner and
// coder can draw on them. PDFs get text extraction; anything else is read
// as plain text.
type Reader struct{}

// NewReader creates a document reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read executes a READ FILE command against a document and stores the
// extracted text in the shared state.
func (r *Reader) Read(command string, shared *state.Shared) models.StepResult {
	op, filename := fileops.ParseCommand(command)
	if op != fileops.OpReadFile || filename == "" {
		return failure("document reader expects READ FILE 'name', got: %q", command)
	}

	path := filename
	if !filepath.IsAbs(path) {
		if dir := shared.ProjectDir(); dir != "" {
			path = filepath.Join(dir, filename)
		}
	}

	var (
		content string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		content, err = extractPDFText(path)
	case ".txt", ".md", ".rst", ".csv", ".json", ".yaml", ".yml":
		content, err = readPlainText(path)
	default:
		return failure("unsupported document type %q", ext)
	}
	if err != nil {
		return failure("read document %s: %v", filename, err)
	}

	if len(content) > maxDocumentBytes {
		content = content[:maxDocumentBytes]
	}
	shared.SetDocumentContent(content)

	return models.StepResult{
		Status: models.StepSucceeded,
		Output: fmt.Sprintf("Loaded %q (%d chars) into memory.", filename, len(content)),
	}
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func readPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
