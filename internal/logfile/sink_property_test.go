package logfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRotation_PropertyBased checks the rotation invariants for random write
// sequences: the chain never grows past backupCount, the primary exceeds
// maxBytes by at most the last write, and the retained files read oldest to
// newest form a suffix of everything written, cut on write boundaries.
func TestRotation_PropertyBased(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rotation keeps a bounded suffix of the stream", prop.ForAll(
		func(lengths []int, maxBytes int, backups int) bool {
			path := filepath.Join(t.TempDir(), "app.log")
			s, err := Open(path, int64(maxBytes), backups)
			if err != nil {
				t.Logf("open: %v", err)
				return false
			}
			defer s.Close()

			var written []string
			for i, n := range lengths {
				line := strings.Repeat(string(rune('a'+i%26)), n-1) + "\n"
				if _, err := s.Write([]byte(line)); err != nil {
					t.Logf("write: %v", err)
					return false
				}
				written = append(written, line)
			}

			if _, err := os.Stat(s.BackupPath(backups + 1)); err == nil {
				return false
			}

			primary, err := os.ReadFile(path)
			if err != nil {
				return false
			}
			if len(written) > 0 {
				last := len(written[len(written)-1])
				if len(primary) >= maxBytes+last {
					return false
				}
			}

			var retained strings.Builder
			for i := backups; i >= 1; i-- {
				if b, err := os.ReadFile(s.BackupPath(i)); err == nil {
					retained.Write(b)
				}
			}
			retained.Write(primary)

			all := strings.Join(written, "")
			got := retained.String()
			if !strings.HasSuffix(all, got) {
				return false
			}
			// the cut must fall on a write boundary
			cut := len(all) - len(got)
			offset := 0
			for _, w := range written {
				if offset == cut {
					return true
				}
				offset += len(w)
			}
			return offset == cut
		},
		gen.SliceOf(gen.IntRange(1, 40)),
		gen.IntRange(1, 120),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
