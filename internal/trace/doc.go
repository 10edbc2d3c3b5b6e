// Package trace holds the canonical event table shared by every trace format,
// together with the passes that run over it once a reader has produced it:
// depth reconstruction, presentation annotation, natural ordering of stream
// and label names, and duration formatting.
package trace
