package progress

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
)

// Type names the kind of milestone an Event represents.
type Type string

// Event types, in the order a job can emit them.
const (
	TypeStart     Type = "start"
	TypeProgress  Type = "progress"
	TypeErrorItem Type = "error_item"
	TypeBlocked   Type = "blocked"
	TypeComplete  Type = "complete"
	TypeError     Type = "error"
)

// Event is a single ordered message about one ingest job.
type Event struct {
	Type         Type
	JobID        string
	CollectionID int64
	TS           time.Time

	Total    int
	Current  int
	Success  int
	Failed   int
	Progress float64

	// Index is the 1-based row number the event refers to.
	Index   int
	Message string
	Item    *catalog.ItemRef

	RemainingCount int
	DownloadToken  string
	Blocked        bool

	// Elapsed is the job runtime on terminal events. It is not part of the wire form.
	Elapsed time.Duration
	// URL is the row's source URL. It is not part of the wire form.
	URL string
}

// Terminal reports whether no further events follow for the job.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Total < 0 || e.Success < 0 || e.Failed < 0 || e.Current < 0 {
		return errors.New("counters must be >= 0")
	}
	if e.Progress < 0 || e.Progress > 100 {
		return fmt.Errorf("progress %.2f out of range", e.Progress)
	}
	switch e.Type {
	case TypeStart, TypeComplete:
	case TypeProgress:
		if e.Item == nil {
			return errors.New("progress event requires item")
		}
	case TypeErrorItem, TypeBlocked:
		if e.Index <= 0 {
			return fmt.Errorf("%s event requires a row index", e.Type)
		}
	case TypeError:
		if e.Message == "" {
			return errors.New("error event requires message")
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// Percent returns done/total as a percentage rounded to two decimals.
func Percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(done)/float64(total)*100*100) / 100
}
