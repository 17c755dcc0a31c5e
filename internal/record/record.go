package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Language is the language part of a record.
type Language struct {
	QID      string `json:"qid"`
	Learning string `json:"learning,omitempty"` // place of learning, qid
}

// Record describes one pronunciation recording.
type Record struct {
	ID               string   `json:"id"`
	Transcription    string   `json:"transcription"` // target page title
	File             string   `json:"file"`
	Language         Language `json:"language"`
	SpeakerResidence string   `json:"speaker_residence,omitempty"`
}

// Location returns the place of learning when known, else the speaker's
// residence. Empty when neither is set.
func (r Record) Location() string {
	if r.Language.Learning != "" {
		return r.Language.Learning
	}
	return r.SpeakerResidence
}

// LocationIDs collects the distinct locations used by records, sorted.
func LocationIDs(records []Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, q := range []string{r.Language.Learning, r.SpeakerResidence} {
			if q != "" {
				seen[q] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for q := range seen {
		ids = append(ids, q)
	}
	sort.Strings(ids)
	return ids
}

// LoadFile reads records from a JSON array or JSON-lines file.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads records from r. A leading '[' selects JSON array decoding;
// anything else is read as one JSON object per line.
func Decode(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var records []Record
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var rec Record
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("decode record on line %d: %w", lineNum, err)
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan records: %w", err)
		}
	}

	for i, rec := range records {
		if rec.Transcription == "" || rec.File == "" || rec.Language.QID == "" {
			return nil, fmt.Errorf("record %d (%s): transcription, file and language.qid are required", i, rec.ID)
		}
	}

	return records, nil
}
