package formats

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLArchiveDecoder reads sequence traces described as a YAML manifest:
//
//	locations:
//	  - {id: 0, name: P0T0}
//	archives:
//	  - threads:
//	      - id: 0
//	        sequences:
//	          - name: compute        # or tokens: [MPI_Recv, compute]
//	            timestamps: [0, 100]
//	            durations: [40, 40]
type YAMLArchiveDecoder struct{}

type yamlManifest struct {
	Locations []yamlLocation `yaml:"locations"`
	Archives  []yamlArchive  `yaml:"archives"`
}

type yamlLocation struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type yamlArchive struct {
	Threads []yamlThread `yaml:"threads"`
}

type yamlThread struct {
	ID        int             `yaml:"id"`
	Sequences []*yamlSequence `yaml:"sequences"`
}

type yamlSequence struct {
	Name   string   `yaml:"name"`
	Tokens []string `yaml:"tokens"`
	Starts []int64  `yaml:"timestamps"`
	Spans  []int64  `yaml:"durations"`

	index int
}

func (s *yamlSequence) Timestamps() []int64 { return s.Starts }
func (s *yamlSequence) Durations() []int64  { return s.Spans }

// GuessName prefers the explicit name, then the joined tokens, then a
// positional placeholder.
func (s *yamlSequence) GuessName(int) string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.Tokens) > 0 {
		return strings.Join(s.Tokens, "_")
	}
	return fmt.Sprintf("sequence_%d", s.index)
}

func (YAMLArchiveDecoder) Open(path string) (*SequenceTrace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m yamlManifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid archive manifest: %w", err)
	}

	tr := &SequenceTrace{Locations: make(map[int]string, len(m.Locations))}
	for _, l := range m.Locations {
		tr.Locations[l.ID] = l.Name
	}
	for _, a := range m.Archives {
		archive := SequenceArchive{}
		for _, t := range a.Threads {
			thread := SequenceThread{ID: t.ID}
			for i, s := range t.Sequences {
				if s == nil {
					return nil, fmt.Errorf("thread %d: sequence %d is empty", t.ID, i)
				}
				s.index = i
				thread.Sequences = append(thread.Sequences, s)
			}
			archive.Threads = append(archive.Threads, thread)
		}
		tr.Archives = append(tr.Archives, archive)
	}
	return tr, nil
}
