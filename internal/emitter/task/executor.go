package task

import (
	"github.com/banshee-data/emitter.report/internal/emitter"
	"github.com/banshee-data/emitter.report/internal/monitoring"
	"github.com/banshee-data/emitter.report/internal/pdw"
)

// Executor wires the pipeline components into the staged execution function
// a RecognitionTask runs. One executor is shared across tasks; it holds no
// per-run state.
type Executor struct {
	pipeline  *emitter.ClusterPipeline
	encoder   *emitter.RasterEncoder
	pa        *emitter.Channel
	dtoa      *emitter.Channel
	scorer    *emitter.JointScorer
	extractor *emitter.ParameterExtractor
	sink      emitter.ResultSink // optional
	logf      func(format string, v ...interface{})
}

// NewExecutor validates the wiring. sink may be nil to skip persistence.
func NewExecutor(pipeline *emitter.ClusterPipeline, encoder *emitter.RasterEncoder,
	pa, dtoa *emitter.Channel, scorer *emitter.JointScorer,
	extractor *emitter.ParameterExtractor, sink emitter.ResultSink) (*Executor, error) {

	if pipeline == nil || encoder == nil || pa == nil || dtoa == nil || scorer == nil || extractor == nil {
		return nil, &emitter.ConfigError{Field: "executor", Message: "all pipeline components must be set"}
	}
	return &Executor{
		pipeline:  pipeline,
		encoder:   encoder,
		pa:        pa,
		dtoa:      dtoa,
		scorer:    scorer,
		extractor: extractor,
		sink:      sink,
		logf:      monitoring.Prefixed("Executor"),
	}, nil
}

// Run drives one session through all stages. It is the ExecFunc bound to
// scheduled tasks; it checks for pause/cancel at stage boundaries and once
// per cluster inside the recognition loops.
func (e *Executor) Run(t *RecognitionTask) error {
	session := t.Session()
	if session == nil {
		return &emitter.ValidationError{Op: "run", Message: "task has no session"}
	}

	if !t.CheckPauseAndCancel() {
		return ErrCancelled
	}
	t.CompleteStage(StageInit)

	// CF pass over the whole slice.
	cfRes, err := e.pipeline.ClusterDimension(&session.Slice, nil, emitter.DimensionCF, 1)
	if err != nil {
		return &emitter.ProcessingError{Stage: StageCFCluster.String(), Message: "CF clustering", Err: err}
	}
	session.CFCandidates = cfRes.Candidates
	t.CompleteStageWithResult(StageCFCluster, len(cfRes.Candidates), "CF candidates")

	session.CFResults, err = e.recognizeAll(t, StageCFRecognize, session.CFCandidates)
	if err != nil {
		return err
	}
	t.CompleteStageWithResult(StageCFRecognize, len(session.CFResults), "CF results")

	// PW pass over what the CF pass did not claim.
	pwRes, err := e.pipeline.ClusterDimension(&session.Slice, cfRes.Recyclable, emitter.DimensionPW, cfRes.NextClusterIndex)
	if err != nil {
		return &emitter.ProcessingError{Stage: StagePWCluster.String(), Message: "PW clustering", Err: err}
	}
	session.PWCandidates = pwRes.Candidates
	session.NoiseCount = len(pwRes.Noise)
	t.CompleteStageWithResult(StagePWCluster, len(pwRes.Candidates), "PW candidates")

	session.PWResults, err = e.recognizeAll(t, StagePWRecognize, session.PWCandidates)
	if err != nil {
		return err
	}
	t.CompleteStageWithResult(StagePWRecognize, len(session.PWResults), "PW results")

	// Parameter extraction for accepted clusters only.
	passed := session.PassedResults()
	for i, r := range passed {
		if !t.CheckPauseAndCancel() {
			return ErrCancelled
		}
		ps, err := e.extractor.Extract(r.Candidate)
		if err != nil {
			return &emitter.ProcessingError{Stage: StageExtract.String(), Message: "parameter extraction", Err: err}
		}
		r.Params = ps
		t.UpdateStage(StageExtract, float64(i+1)/float64(len(passed)))
	}
	t.CompleteStageWithResult(StageExtract, len(passed), "parameter sets")

	if !t.CheckPauseAndCancel() {
		return ErrCancelled
	}
	if e.sink != nil {
		if err := e.sink.SaveSession(session); err != nil {
			// Persistence is best-effort; the recognition outcome stands.
			e.logf("session %s: save failed: %v", session.ID, err)
		}
	}
	st := session.Stats()
	e.logf("session %s (slice %d): %d/%d clusters passed, %d pulses noise",
		session.ID, session.SliceIndex, st.Passed, st.Passed+st.Failed, st.NoisePulses)
	t.CompleteStageWithResult(StageFinalize, st.Passed, "clusters passed")
	return nil
}

// recognizeAll classifies and scores the valid candidates of one pass.
// Invalid candidates stay in the session for reporting but are not
// classified: their points were recycled (CF) or lack structure (PW).
func (e *Executor) recognizeAll(t *RecognitionTask, stage Stage, cands []*emitter.ClusterCandidate) ([]*emitter.RecognitionResult, error) {
	var results []*emitter.RecognitionResult
	for i, c := range cands {
		if !t.CheckPauseAndCancel() {
			return nil, ErrCancelled
		}
		if c.Status == emitter.CandidateValid {
			r, err := e.recognize(c)
			if err != nil {
				return nil, &emitter.ProcessingError{Stage: stage.String(), Message: "cluster " + c.ID, Err: err}
			}
			results = append(results, r)
		}
		t.UpdateStage(stage, float64(i+1)/float64(len(cands)))
	}
	return results, nil
}

func (e *Executor) recognize(c *emitter.ClusterCandidate) (*emitter.RecognitionResult, error) {
	paImg, err := e.encoder.Encode(c, emitter.FeaturePA)
	if err != nil {
		return nil, err
	}
	dtoaImg, err := e.encoder.Encode(c, emitter.FeatureDTOA)
	if err != nil {
		return nil, err
	}
	paPred, err := e.pa.Classify(paImg)
	if err != nil {
		return nil, err
	}
	dtoaPred, err := e.dtoa.Classify(dtoaImg)
	if err != nil {
		return nil, err
	}
	score := e.scorer.Score(paPred, dtoaPred, c)
	return emitter.NewRecognitionResult(c, paPred, dtoaPred, score), nil
}

// NewSliceTask builds a scheduled task for one slice using this executor.
func (e *Executor) NewSliceTask(slice pdw.Slice, priority Priority) *RecognitionTask {
	return NewRecognitionTask(emitter.NewRecognitionSession(slice), priority, e.Run)
}
