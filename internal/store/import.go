package store

const importedPrefix = "imported/"

// ImportedFileHash returns the content hash recorded for an imported exam
// file, or "" if the file was never imported.
func (s *Store) ImportedFileHash(source string) (string, error) {
	var hash string
	if _, err := s.GetSlot(importedPrefix+source, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// SetImportedFileHash records the content hash of an imported exam file.
func (s *Store) SetImportedFileHash(source, hash string) error {
	return s.SetSlot(importedPrefix+source, hash)
}
