package models

import "time"

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	DefaultPlanningWhse  = "ZAC"
	DefaultSampleRows    = 5
	DefaultUploadPrefix  = "uploads/"
	DefaultPresignExpiry = 600
)

type UploadStatus string

const (
	UploadIdle       UploadStatus = "idle"
	UploadPresigning UploadStatus = "presigning"
	UploadUploading  UploadStatus = "uploading"
	UploadUploaded   UploadStatus = "uploaded"
	UploadError      UploadStatus = "error"
)

// UploadSession is replaced, never merged, when a new file is selected.
type UploadSession struct {
	SessionID   string       `json:"session_id"`
	Generation  uint64       `json:"generation"`
	FileName    string       `json:"file_name"`
	ContentType string       `json:"content_type"`
	StorageKey  string       `json:"storage_key,omitempty"`
	Status      UploadStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
}

func (s UploadSession) HasStorageKey() bool {
	return s.StorageKey != ""
}

type UploadTarget struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

type PreviewResult struct {
	StorageKey             string           `json:"-"`
	Headers                []string         `json:"headers"`
	RowCount               int              `json:"rowCount"`
	MissingRequiredColumns []string         `json:"missingRequiredColumns"`
	Sample                 []map[string]any `json:"sample"`
}

type WeightConfig struct {
	TexasMax      float64 `json:"texas_max" toml:"texas_max"`
	TexasMin      float64 `json:"texas_min" toml:"texas_min"`
	OtherMax      float64 `json:"other_max" toml:"other_max"`
	OtherMin      float64 `json:"other_min" toml:"other_min"`
	LoadTargetPct float64 `json:"load_target_pct" toml:"load_target_pct"`
}

func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		TexasMax:      52000,
		TexasMin:      47000,
		OtherMax:      48000,
		OtherMin:      44000,
		LoadTargetPct: 0.98,
	}
}

// PlanningParams is the non-weight half of an optimize submission.
type PlanningParams struct {
	PlanningWhse   string `json:"planning_whse"`
	AllowMultiStop bool   `json:"allow_multi_stop"`
	SheetName      string `json:"sheet_name,omitempty"`
}

type PriorityBucket string

const (
	BucketLate         PriorityBucket = "Late"
	BucketNearDue      PriorityBucket = "NearDue"
	BucketWithinWindow PriorityBucket = "WithinWindow"
	BucketNotDue       PriorityBucket = "NotDue"
)

type Truck struct {
	TruckNumber      int            `json:"truckNumber"`
	CustomerName     string         `json:"customerName"`
	CustomerCity     string         `json:"customerCity"`
	CustomerState    string         `json:"customerState"`
	Zone             *string        `json:"zone,omitempty"`
	Route            *string        `json:"route,omitempty"`
	TotalWeight      float64        `json:"totalWeight"`
	MinWeight        float64        `json:"minWeight"`
	MaxWeight        float64        `json:"maxWeight"`
	TotalOrders      int            `json:"totalOrders"`
	TotalLines       int            `json:"totalLines"`
	TotalPieces      int            `json:"totalPieces"`
	MaxWidth         float64        `json:"maxWidth"`
	PercentOverwidth float64        `json:"percentOverwidth"`
	ContainsLate     bool           `json:"containsLate"`
	PriorityBucket   PriorityBucket `json:"priorityBucket"`
}

type Assignment struct {
	TruckNumber       int     `json:"truckNumber"`
	SO                string  `json:"so"`
	Line              string  `json:"line"`
	CustomerName      string  `json:"customerName"`
	CustomerCity      string  `json:"customerCity"`
	CustomerState     string  `json:"customerState"`
	PiecesOnTransport int     `json:"piecesOnTransport"`
	TotalReadyPieces  int     `json:"totalReadyPieces"`
	WeightPerPiece    float64 `json:"weightPerPiece"`
	TotalWeight       float64 `json:"totalWeight"`
	Width             float64 `json:"width"`
	IsOverwidth       bool    `json:"isOverwidth"`
	IsLate            bool    `json:"isLate"`
	EarliestDue       *string `json:"earliestDue,omitempty"`
	LatestDue         *string `json:"latestDue,omitempty"`
	IsPartial         bool    `json:"isPartial"`
	IsRemainder       bool    `json:"isRemainder"`
	ParentLine        *string `json:"parentLine,omitempty"`
	RemainingPieces   *int    `json:"remainingPieces,omitempty"`
}

type Metrics map[string]any

type ResultBundle struct {
	Trucks      []Truck      `json:"trucks"`
	Assignments []Assignment `json:"assignments"`
	Sections    Sections     `json:"sections"`
	Metrics     Metrics      `json:"metrics"`
}

func (b *ResultBundle) Empty() bool {
	return b == nil || len(b.Trucks) == 0 && len(b.Assignments) == 0
}

type ExportKind string

const (
	ExportStandard   ExportKind = "standard"
	ExportDHLoadList ExportKind = "dh-load-list"
)

func ParseExportKind(s string) (ExportKind, bool) {
	switch ExportKind(s) {
	case ExportStandard, ExportDHLoadList:
		return ExportKind(s), true
	}
	return "", false
}

// Filename is the fixed local name the artifact is saved under.
func (k ExportKind) Filename() string {
	switch k {
	case ExportDHLoadList:
		return "dh_load_list.xlsx"
	default:
		return "truck_optimization_results.xlsx"
	}
}

func (k ExportKind) Path() string {
	switch k {
	case ExportDHLoadList:
		return "/export/dh-load-list"
	default:
		return "/export/trucks"
	}
}

// ExportedFile describes an artifact saved to the download directory.
type ExportedFile struct {
	Kind     ExportKind `json:"kind"`
	Path     string     `json:"path"`
	Filename string     `json:"filename"`
	Bytes    int        `json:"bytes"`
	SHA256   string     `json:"sha256"`
	Sheets   []string   `json:"sheets"`
}

// RunRecord is an audit row; it is written, never read back into a session.
type RunRecord struct {
	RunID        string        `json:"run_id,omitempty"`
	SessionID    string        `json:"session_id"`
	Step         string        `json:"step"`
	StorageKey   string        `json:"storage_key"`
	PlanningWhse string        `json:"planning_whse,omitempty"`
	Status       string        `json:"status"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	TruckCount   int           `json:"truck_count"`
	Duration     time.Duration `json:"duration"`
}
