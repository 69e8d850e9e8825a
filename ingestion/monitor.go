package ingestion

import "github.com/mishgancheg/wiki-rag/core"

// ProgressMonitor provides hooks to observe per-document ingestion.
// Implement this interface to track stage transitions and outcomes; the
// coordinator invokes it on every transition of every document.
type ProgressMonitor interface {
	StageChanged(documentID string, stage Stage, percent int)
	DocumentFailed(documentID string, err error)
	DocumentCompleted(documentID string, report core.IngestReport)
}

// noopMonitor is a no-op implementation of ProgressMonitor.
type noopMonitor struct{}

var _ ProgressMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) StageChanged(_ string, _ Stage, _ int)            {}
func (n *noopMonitor) DocumentFailed(_ string, _ error)                 {}
func (n *noopMonitor) DocumentCompleted(_ string, _ core.IngestReport)  {}
