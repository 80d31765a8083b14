package emitter

// ResultSink receives finished sessions for persistence. Saving is
// best-effort from the pipeline's point of view: a sink failure is logged
// by the caller and never fails the task.
type ResultSink interface {
	SaveSession(s *RecognitionSession) error
}
