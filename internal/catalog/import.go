package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/manasetna/exams/internal/model"
)

var (
	ErrAlreadyImported = errors.New("file already imported")
	ErrInvalidImport   = errors.New("exam file is not valid JSON")
)

// ExamInput is one exam as it appears in an import file.
type ExamInput struct {
	Name      string          `json:"name"`
	Grade     string          `json:"grade"`
	Questions []QuestionInput `json:"questions"`
}

// ExamError ties a validation failure to an exam by its 1-based position in
// an import file.
type ExamError struct {
	N   int
	Err error
}

func (e *ExamError) Error() string {
	return fmt.Sprintf("exam %d: %v", e.N, e.Err)
}

func (e *ExamError) Unwrap() error {
	return e.Err
}

// Import creates every exam in a JSON file. All exams are validated before
// any is written. A file whose content hash matches the last import from the
// same source returns ErrAlreadyImported.
func (c *Catalog) Import(author model.User, source string, data []byte) ([]model.Exam, error) {
	if !author.IsAdmin() {
		return nil, ErrForbidden
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	stored, err := c.store.ImportedFileHash(source)
	if err != nil {
		return nil, err
	}
	if stored == hash {
		return nil, ErrAlreadyImported
	}

	var inputs []ExamInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if len(inputs) == 0 {
		return nil, ErrNoQuestions
	}

	exams := make([]model.Exam, 0, len(inputs))
	for i, in := range inputs {
		exam, err := c.build(author, in.Name, in.Grade, in.Questions)
		if err != nil {
			return nil, &ExamError{N: i + 1, Err: err}
		}
		exams = append(exams, exam)
	}
	for _, exam := range exams {
		if err := c.store.AppendExam(exam); err != nil {
			return nil, err
		}
	}

	if err := c.store.SetImportedFileHash(source, hash); err != nil {
		slog.Error("failed to record import", "source", source, "error", err)
	}
	slog.Info("imported exams", "source", source, "count", len(exams))
	return exams, nil
}
