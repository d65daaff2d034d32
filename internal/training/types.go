package training

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nikhilbhutani/aiservices/internal/database"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusEmbedding  Status = "embedding"
	StatusStoring    Status = "storing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// ID is a numeric identifier that also accepts its decimal string form,
// since callers send knowledge base, version and file ids either way.
type ID int64

func (i *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*i = 0
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	if s == "" {
		*i = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("id %s is not an integer", b)
	}
	*i = ID(n)
	return nil
}

// Label is a free-form identifier accepted as a JSON string or number.
type Label string

func (l *Label) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Label(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("label %s is neither string nor number", b)
		}
		*l = Label(n.String())
	}
	return nil
}

// Grouping ties a job to the batch it was split from.
type Grouping struct {
	JobID     Label `json:"job_id,omitempty"`
	JobIndex  *int  `json:"job_index,omitempty"`
	TotalJobs *int  `json:"total_jobs,omitempty"`
}

type FileJob struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size,omitempty"`
	Grouping
}

// DisplayName falls back to "Unknown" for unnamed files.
func (f FileJob) DisplayName() string {
	if f.Name == "" {
		return "Unknown"
	}
	return f.Name
}

type Job struct {
	KnowledgeBaseID ID                  `json:"knowledge_base_id"`
	VersionID       ID                  `json:"version_id"`
	Files           []FileJob           `json:"files"`
	DB              database.ConnParams `json:"db_config"`
}

// Grouping is read from the first file.
func (j Job) Grouping() Grouping {
	if len(j.Files) == 0 {
		return Grouping{}
	}
	return j.Files[0].Grouping
}

func (j Job) Validate() error {
	if j.KnowledgeBaseID <= 0 {
		return fmt.Errorf("%w: knowledge_base_id is required", ErrInvalidJob)
	}
	if j.VersionID <= 0 {
		return fmt.Errorf("%w: version_id is required", ErrInvalidJob)
	}
	for i, f := range j.Files {
		if f.Path == "" {
			return fmt.Errorf("%w: file %d has no path", ErrInvalidJob, i+1)
		}
	}
	return nil
}

type FileDetail struct {
	FileID      ID         `json:"file_id"`
	FileName    string     `json:"file_name"`
	FileSize    int64      `json:"file_size"`
	FileType    string     `json:"file_type"`
	Status      Status     `json:"status"`
	ChunksTotal int        `json:"chunks_total"`
	ChunksDone  int        `json:"chunks_done"`
	Percentage  int        `json:"percentage"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type Event struct {
	Type            EventType    `json:"type"`
	Status          Status       `json:"status,omitempty"`
	CurrentFile     int          `json:"current_file"`
	TotalFiles      int          `json:"total_files"`
	CurrentChunk    int          `json:"current_chunk"`
	TotalChunks     int          `json:"total_chunks"`
	Percentage      int          `json:"percentage"`
	CurrentFileName string       `json:"current_file_name,omitempty"`
	CurrentFileID   ID           `json:"current_file_id,omitempty"`
	CurrentFileSize int64        `json:"current_file_size,omitempty"`
	CurrentFileType string       `json:"current_file_type,omitempty"`
	FileDetails     []FileDetail `json:"file_details"`
	Message         string       `json:"message"`
	Error           string       `json:"error,omitempty"`
	Grouping
}

// Terminal reports whether no event follows this one: a job completion or
// a job-level failure (an error not tied to any file).
func (e Event) Terminal() bool {
	return e.Type == EventComplete || (e.Type == EventError && e.CurrentFile == 0)
}
