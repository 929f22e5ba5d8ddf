package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gosuri/uilive"

	"deepbandit/replay"
)

var ErrTooManyErrors = errors.New("too many errors")

type experimentRunContext struct {
	run       int
	ctx       context.Context
	analyzers map[string]Analyzer

	writer io.Writer

	*RunConfig
}

type ExperimentResult struct {
	CompletedEpisodes int
	TotalEpisodes     int
	ErrorEpisodes     int
	TotalSteps        int
	LearnSteps        int
	TotalReward       float64

	Error    error
	Datasets map[string]DataSet
}

func (r *ExperimentResult) IsError() bool {
	return r.Error != nil
}

// runEpisode plays one episode: reset, then up to Horizon act-observe-learn
// cycles. Bandit environments terminate after a single step; multi-step ones
// run until the horizon or a terminal result.
func (e *Experiment) runEpisode(eCtx *EpisodeContext, ctx *experimentRunContext, result *ExperimentResult) {
	obs, err := e.Environment.Reset()
	if err != nil {
		eCtx.Error(err)
		return
	}
	learnEvery := ctx.LearnEvery
	if learnEvery <= 0 {
		learnEvery = 1
	}
	space := e.Environment.ActionSpace()
	for step := 0; step < ctx.Horizon; step++ {
		select {
		case <-eCtx.Context.Done():
			eCtx.Error(eCtx.Context.Err())
			return
		default:
		}

		idx, action, err := e.Agent.Act(obs, space)
		if err != nil {
			eCtx.Error(err)
			return
		}
		state := e.Agent.Summarizer.Summarize(obs)
		res, err := e.Environment.Step(action)
		if err != nil {
			eCtx.Error(err)
			return
		}
		if err := e.Agent.Observe(res); err != nil {
			eCtx.Error(err)
			return
		}
		eCtx.Trace.AddStep(&Step{
			State:       state,
			ActionIndex: idx,
			Action:      action,
			Reward:      res.Reward,
			Terminated:  res.Terminated,
			Truncated:   res.Truncated,
		})

		total := result.TotalSteps + eCtx.Trace.Len()
		if e.Agent.Buffer.Len() >= ctx.BatchSize && total%learnEvery == 0 {
			if _, err := e.Agent.Learn(ctx.BatchSize); err != nil {
				eCtx.Error(err)
				return
			}
			result.LearnSteps++
		}

		if res.Terminated || res.Truncated {
			return
		}
		obs = res.Observation
	}
}

func (e *Experiment) run(ctx *experimentRunContext) *ExperimentResult {
	result := &ExperimentResult{
		Datasets: make(map[string]DataSet),
	}
	e.Agent.Reset()

	consecutiveErrors := 0
EpisodeLoop:
	for episode := 0; episode < ctx.Episodes; episode++ {
		select {
		case <-ctx.ctx.Done():
			result.Error = errors.New("context cancelled")
			break EpisodeLoop
		default:
		}

		if ctx.writer != nil {
			fmt.Fprintf(
				ctx.writer,
				"Experiment: %s, Run %d, Episode %d/%d, Steps: %d, Reward: %.3f, Error: %d\n",
				e.Name, ctx.run, episode, ctx.Episodes, result.TotalSteps, result.TotalReward, result.ErrorEpisodes,
			)
		}

		eCtx := NewEpisodeContext(ctx.ctx)
		eCtx.Run = ctx.run
		eCtx.Episode = episode
		eCtx.Horizon = ctx.Horizon
		eCtx.StartStep = result.TotalSteps

		e.runEpisode(eCtx, ctx, result)

		if eCtx.IsError() {
			result.ErrorEpisodes++
			if consecutiveErrors++; consecutiveErrors >= ctx.ThresholdConsecutiveErrors {
				result.Error = ErrTooManyErrors
				break EpisodeLoop
			}
		} else {
			consecutiveErrors = 0
			result.CompletedEpisodes++
			result.TotalSteps += eCtx.Trace.Len()
			result.TotalReward += eCtx.Trace.TotalReward()
		}
		result.TotalEpisodes++

		for _, a := range ctx.analyzers {
			a.Analyze(eCtx, eCtx.Trace)
		}
	}
	if result.Error != nil && ctx.writer != nil {
		fmt.Fprintf(ctx.writer, "Experiment: %s, Run %d, Error: %v\n", e.Name, ctx.run, result.Error)
	}

	for name, a := range ctx.analyzers {
		result.Datasets[name] = a.DataSet()
	}

	e.Agent.Reset()
	return result
}

func (c *Comparison) Run(ctx context.Context, runs int, rConfig *RunConfig) {
	for run := 0; run < runs; run++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results := make(map[string]*ExperimentResult)

		// Run experiments
		for _, e := range c.Experiments {
			select {
			case <-ctx.Done():
				return
			default:
			}
			rCtx := &experimentRunContext{
				run:       run,
				ctx:       ctx,
				analyzers: make(map[string]Analyzer),
				RunConfig: rConfig,
			}

			for name, a := range c.Analyzers {
				a.Reset()
				rCtx.analyzers[name] = a
			}

			results[e.Name] = e.run(rCtx)
		}

		// Gather datasets to run comparisons
		datasets := make(map[string][]DataSet)
		analyzerNames := make([]string, 0)
		for name := range c.Analyzers {
			analyzerNames = append(analyzerNames, name)
		}
		experimentNames := make([]string, 0)
		for name, result := range results {
			experimentNames = append(experimentNames, name)
			for _, name := range analyzerNames {
				if _, ok := datasets[name]; !ok {
					datasets[name] = make([]DataSet, 0)
				}
				if result.IsError() {
					datasets[name] = append(datasets[name], nil)
				} else {
					datasets[name] = append(datasets[name], result.Datasets[name])
				}
			}
		}
		for name, cmp := range c.Comparators {
			cmp.Compare(experimentNames, datasets[name])
		}
	}
}

// parallelWorker is a worker that runs experiments
type parallelWorker struct {
	id int
}

// parallelWork is a struct that contains all the information needed to run an experiment
type parallelWork struct {
	experiment *ParallelExperiment
	comp       *ParallelComparison
	runNumber  int
	writer     io.Writer
	rConfig    *RunConfig
	wg         *sync.WaitGroup
}

// parallelResult is a struct that contains the result of running an experiment
type parallelResult struct {
	experimentName string
	run            int
	result         *ExperimentResult
}

// Worker main loop that consumes work from a channel. The result send
// happens before wg.Done so the channel cannot be closed under a pending
// send.
func (w *parallelWorker) run(ctx context.Context, workCh <-chan *parallelWork, resultsCh chan<- *parallelResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case work, more := <-workCh:
			if !more {
				return
			}
			result := w.runWork(ctx, work)
			select {
			case resultsCh <- result:
				work.wg.Done()
			case <-ctx.Done():
				work.wg.Done()
				return
			}
		}
	}
}

// Run an experiment by constructing the agent and environment for this worker
func (w *parallelWorker) runWork(ctx context.Context, work *parallelWork) *parallelResult {
	eCtx := &experimentRunContext{
		run:       work.runNumber,
		ctx:       ctx,
		analyzers: make(map[string]Analyzer),
		writer:    work.writer,
		RunConfig: work.rConfig,
	}

	for name, aC := range work.comp.Analyzers {
		eCtx.analyzers[name] = aC.NewAnalyzer(work.experiment.Name, w.id)
	}

	result := &parallelResult{
		experimentName: work.experiment.Name,
		run:            work.runNumber,
	}

	buffer, err := newRunBuffer(work.rConfig, work.runNumber, w.id)
	if err != nil {
		result.result = &ExperimentResult{Error: err, Datasets: make(map[string]DataSet)}
		return result
	}

	exp := &Experiment{
		Name:        work.experiment.Name,
		Environment: work.experiment.Environment.NewEnvironment(w.id),
		Agent: NewAgent(
			work.experiment.Summarizer,
			work.experiment.Learner.NewPolicyLearner(w.id),
			buffer,
		),
	}

	result.result = exp.run(eCtx)

	return result
}

func (c *ParallelComparison) Run(ctx context.Context, runs int, rConfig *RunConfig, parallelism int) {
	for run := 0; run < runs; run++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		// Create workers and channels
		wg := new(sync.WaitGroup)
		writer := uilive.New()
		writer.Start()
		fmt.Fprintf(writer, "Run %d\n", run)

		workCh := make(chan *parallelWork, parallelism)
		resultsCh := make(chan *parallelResult, parallelism)

		// Start workers
		workers := make([]*parallelWorker, parallelism)
		for i := 0; i < parallelism; i++ {
			workers[i] = &parallelWorker{id: i}
			go workers[i].run(ctx, workCh, resultsCh)
		}

		results := make(map[string]*ExperimentResult)

		// Gather results until the channel closes; gatherDone marks the last
		// write to the results map
		gatherDone := make(chan struct{})
		go func() {
			defer close(gatherDone)
			for result := range resultsCh {
				results[result.experimentName] = result.result
			}
		}()

		// Run experiments by sending work to workers
		cancelled := false
		for _, e := range c.Experiments {
			wg.Add(1)
			select {
			case <-ctx.Done():
				wg.Done()
				cancelled = true
			case workCh <- &parallelWork{
				experiment: e,
				comp:       c,
				runNumber:  run,
				rConfig:    rConfig,
				wg:         wg,
				writer:     writer.Newline(),
			}:
			}
			if cancelled {
				break
			}
		}

		// Wait for all sends on resultsCh to finish, then close it and wait
		// for the gatherer before touching the results map
		wg.Wait()
		close(workCh)
		close(resultsCh)
		<-gatherDone
		writer.Stop()

		if cancelled {
			return
		}

		// Gather datasets to run comparisons
		datasets := make(map[string][]DataSet)
		analyzerNames := make([]string, 0)
		for name := range c.Analyzers {
			analyzerNames = append(analyzerNames, name)
		}
		experimentNames := make([]string, 0)
		for name, result := range results {
			experimentNames = append(experimentNames, name)
			for _, name := range analyzerNames {
				if _, ok := datasets[name]; !ok {
					datasets[name] = make([]DataSet, 0)
				}
				if result.IsError() {
					datasets[name] = append(datasets[name], nil)
				} else {
					datasets[name] = append(datasets[name], result.Datasets[name])
				}
			}
		}
		for name, c := range c.Comparators {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.NewComparator(run).Compare(experimentNames, datasets[name])
		}
	}
}

// newRunBuffer builds the per-worker replay buffer, seeding it so repeated
// runs with the same config draw the same samples.
func newRunBuffer(rConfig *RunConfig, run, instance int) (*replay.Buffer, error) {
	capacity := rConfig.BufferCapacity
	if capacity <= 0 {
		capacity = 1000
	}
	opts := []replay.Option{}
	if rConfig.Seed != 0 {
		opts = append(opts, replay.WithSeed(rConfig.Seed+uint64(run)*1000+uint64(instance)))
	}
	return replay.NewBuffer(capacity, opts...)
}
