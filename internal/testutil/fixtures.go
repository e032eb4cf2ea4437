// Package testutil holds fixtures and in-memory stores shared by tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/storage"
	"github.com/spf13/afero"
)

// SampleLog has numeric and categorical values, a carried-forward line and
// a line without a timestamp.
const SampleLog = `2024-01-01 10:00:00.000 worker cpu=50 state=OK
2024-01-01 10:00:01.000 worker cpu=60
2024-01-01 10:00:02.000 worker state=FAIL
worker restarted
2024-01-01 10:00:03.000 worker cpu=80 state=OK
`

// SampleStart is the timestamp of the first line of SampleLog.
var SampleStart = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// SamplePatterns matches the values in SampleLog.
func SamplePatterns() []models.Pattern {
	return []models.Pattern{
		{ID: "cpu", Name: "cpu", Pattern: `cpu=(\d+)`},
		{ID: "state", Name: "state", Pattern: `state=(\w+)`},
	}
}

// GenerateLog returns n lines one step apart starting at SampleStart. Every
// line carries cpu=i and alternates state between busy and idle.
func GenerateLog(n int, step time.Duration) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		ts := SampleStart.Add(time.Duration(i) * step)
		state := "idle"
		if i%2 == 0 {
			state = "busy"
		}
		fmt.Fprintf(&b, "%s worker cpu=%d state=%s\n", ts.Format("2006-01-02 15:04:05.000"), i, state)
	}
	return b.String()
}

// NewMemoryStore returns a file store on an in-memory filesystem.
func NewMemoryStore(t testing.TB) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewStore(afero.NewMemMapFs(), "/uploads")
	if err != nil {
		t.Fatalf("creating memory store: %v", err)
	}
	return store
}

// AddFile saves text under name and returns its metadata.
func AddFile(t testing.TB, store storage.Store, name, text string) *models.FileInfo {
	t.Helper()
	info, err := store.Save(name, strings.NewReader(text))
	if err != nil {
		t.Fatalf("saving %s: %v", name, err)
	}
	return info
}
