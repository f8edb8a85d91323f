package session

import (
	"os/exec"
	"strings"
	"sync"
)

// Annotator produces one metadata entry for a new session. The function
// receives the session's working directory and returns the value; an empty
// value drops the entry.
type Annotator struct {
	Name string
	Fn   func(workdir string) string
}

var (
	annotatorMu       sync.RWMutex
	namedAnnotators   = map[string]Annotator{}
	annotatorRegOrder []string
)

// RegisterAnnotator makes an annotator available by name for the
// [session].annotators config list.
func RegisterAnnotator(a Annotator) {
	annotatorMu.Lock()
	defer annotatorMu.Unlock()
	if _, ok := namedAnnotators[a.Name]; !ok {
		annotatorRegOrder = append(annotatorRegOrder, a.Name)
	}
	namedAnnotators[a.Name] = a
}

// AnnotatorsByName resolves configured annotator names, silently skipping
// unknown ones.
func AnnotatorsByName(names []string) []Annotator {
	annotatorMu.RLock()
	defer annotatorMu.RUnlock()
	var out []Annotator
	for _, n := range names {
		if a, ok := namedAnnotators[n]; ok {
			out = append(out, a)
		}
	}
	return out
}

// annotate runs the annotators in order and collects their non-empty output.
func annotate(annotators []Annotator, workdir string) []Annotation {
	var out []Annotation
	for _, a := range annotators {
		if a.Fn == nil {
			continue
		}
		if v := a.Fn(workdir); v != "" {
			out = append(out, Annotation{Name: a.Name, Value: v})
		}
	}
	return out
}

func init() {
	RegisterAnnotator(Annotator{
		Name: "git-branch",
		Fn: func(workdir string) string {
			cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
			cmd.Dir = workdir
			out, err := cmd.Output()
			if err != nil {
				return ""
			}
			return strings.TrimSpace(string(out))
		},
	})
}
