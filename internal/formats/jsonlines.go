package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/buger/jsonparser"
)

const maxEventLine = 16 * 1024 * 1024

// JSONLinesDecoder reads hierarchical traces dumped one JSON object per line:
//
//	{"kind":"Enter","location":"P0T0","region":"MPI_Send","time":1200}
//
// location may be a string or a number. region is optional.
type JSONLinesDecoder struct{}

func (JSONLinesDecoder) Events(path string) iter.Seq2[HierarchicalEvent, error] {
	return func(yield func(HierarchicalEvent, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(HierarchicalEvent{}, err)
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
		line := 0
		for scanner.Scan() {
			line++
			b := bytes.TrimSpace(scanner.Bytes())
			if len(b) == 0 {
				continue
			}
			ev, err := parseEventLine(b)
			if err != nil {
				yield(HierarchicalEvent{}, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(HierarchicalEvent{}, err)
		}
	}
}

func parseEventLine(b []byte) (HierarchicalEvent, error) {
	var ev HierarchicalEvent

	kind, err := jsonparser.GetString(b, "kind")
	if err != nil {
		return ev, fmt.Errorf("kind: %w", err)
	}
	ev.Kind = ParseEventKind(kind)

	value, dataType, _, err := jsonparser.Get(b, "location")
	if err != nil {
		return ev, fmt.Errorf("location: %w", err)
	}
	switch dataType {
	case jsonparser.String:
		if ev.Location, err = jsonparser.ParseString(value); err != nil {
			return ev, fmt.Errorf("location: %w", err)
		}
	case jsonparser.Number:
		ev.Location = string(value)
	default:
		return ev, fmt.Errorf("location: unexpected %s value", dataType)
	}

	ev.Region, err = jsonparser.GetString(b, "region")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return ev, fmt.Errorf("region: %w", err)
	}

	if ev.Time, err = jsonparser.GetInt(b, "time"); err != nil {
		return ev, fmt.Errorf("time: %w", err)
	}
	return ev, nil
}
