package core

import "context"

// EpisodeContext carries the identity of one episode through the run loop and
// into analyzers.
type EpisodeContext struct {
	Context   context.Context
	Episode   int
	Run       int
	Horizon   int
	StartStep int

	Trace *Trace

	err error
}

func NewEpisodeContext(ctx context.Context) *EpisodeContext {
	return &EpisodeContext{
		Context: ctx,
		Trace:   NewTrace(),
	}
}

func (e *EpisodeContext) Error(err error) {
	e.err = err
}

func (e *EpisodeContext) IsError() bool {
	return e.err != nil
}

func (e *EpisodeContext) Err() error {
	return e.err
}

// ParallelExperiment describes an experiment whose environment and learner
// are constructed per worker instance.
type ParallelExperiment struct {
	Name        string
	Environment EnvironmentConstructor
	Learner     PolicyLearnerConstructor
	Summarizer  HistorySummarizer
}

type DataSet interface{}

type Analyzer interface {
	Analyze(*EpisodeContext, *Trace)
	DataSet() DataSet
	Reset()
}

type AnalyzerConstructor interface {
	// new analyzer based on experiment name and worker instance
	NewAnalyzer(string, int) Analyzer
}

type Comparator interface {
	Compare([]string, []DataSet)
}

type ComparatorConstructor interface {
	NewComparator(int) Comparator
}

type ParallelComparison struct {
	Experiments []*ParallelExperiment
	Analyzers   map[string]AnalyzerConstructor
	Comparators map[string]ComparatorConstructor
}

// RunConfig controls the interaction and learning schedule of a run.
type RunConfig struct {
	Episodes int
	Horizon  int

	// Learning schedule. One learn step every LearnEvery environment steps,
	// once the buffer holds at least BatchSize transitions.
	BatchSize  int
	LearnEvery int

	BufferCapacity int
	Seed           uint64

	ThresholdConsecutiveErrors int
}

func NewParallelComparison() *ParallelComparison {
	return &ParallelComparison{
		Analyzers:   make(map[string]AnalyzerConstructor),
		Comparators: make(map[string]ComparatorConstructor),
		Experiments: make([]*ParallelExperiment, 0),
	}
}

func (c *ParallelComparison) AddExperiment(e *ParallelExperiment) {
	c.Experiments = append(c.Experiments, e)
}

func (c *ParallelComparison) AddAnalysis(name string, a AnalyzerConstructor, cmp ComparatorConstructor) {
	c.Analyzers[name] = a
	c.Comparators[name] = cmp
}

// Experiment is a fully constructed environment and agent pair.
type Experiment struct {
	Name        string
	Environment Environment
	Agent       *Agent
}

type Comparison struct {
	Experiments []*Experiment
	Analyzers   map[string]Analyzer
	Comparators map[string]Comparator
}

func NewComparison() *Comparison {
	return &Comparison{
		Analyzers:   make(map[string]Analyzer),
		Comparators: make(map[string]Comparator),
		Experiments: make([]*Experiment, 0),
	}
}

func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

func (c *Comparison) AddAnalysis(name string, a Analyzer, cmp Comparator) {
	c.Analyzers[name] = a
	c.Comparators[name] = cmp
}
