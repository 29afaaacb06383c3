package execution

import (
	"os"
	"path/filepath"
	"strings"
)

// fingerprint is a cheap content identity: length plus head and tail
// slices. Approximate by design, fast enough to run on every execution.
type fingerprint struct {
	Length int
	Head   string
	Tail   string
}

const fingerprintSlice = 256

func fingerprintContent(content string) fingerprint {
	head := content
	if len(head) > fingerprintSlice {
		head = head[:fingerprintSlice]
	}
	tail := content
	if len(tail) > fingerprintSlice {
		tail = tail[len(tail)-fingerprintSlice:]
	}
	return fingerprint{Length: len(content), Head: head, Tail: tail}
}

// fileState is the pre-execution snapshot of one target file.
type fileState struct {
	Print fingerprint
	Lines int
}

// preSnapshot is the in-memory pre-state of one execution, kept until
// the completion entry point consumes it.
type preSnapshot struct {
	ProjectID   string
	AutoFixID   string
	TargetFiles []string
	Files       map[string]fileState
	HealthScore float64
}

// snapshotFiles reads the target files under the project root.
// Unreadable files are recorded with a zero state so their later
// appearance counts as a change.
func snapshotFiles(projectRoot string, files []string) map[string]fileState {
	states := make(map[string]fileState, len(files))
	for _, file := range files {
		content, err := os.ReadFile(filepath.Join(projectRoot, file))
		if err != nil {
			states[file] = fileState{}
			continue
		}
		text := string(content)
		states[file] = fileState{
			Print: fingerprintContent(text),
			Lines: strings.Count(text, "\n") + 1,
		}
	}
	return states
}

// diffFiles compares pre and post states, returning which files changed
// and the approximate net line delta.
func diffFiles(pre, post map[string]fileState) (changed []string, added, removed int) {
	for file, before := range pre {
		after, ok := post[file]
		if !ok {
			continue
		}
		if before.Print == after.Print {
			continue
		}
		changed = append(changed, file)
		delta := after.Lines - before.Lines
		if delta > 0 {
			added += delta
		} else {
			removed += -delta
		}
	}
	return changed, added, removed
}
