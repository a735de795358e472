package compiler

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/lin-qingying/kcjpm-sub000/pkg/events"
	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// Stage is one named step of a Pipeline run.
type Stage interface {
	Name() string
	Run(ctx context.Context, cc *CompilationContext) error
}

// Pipeline runs its stages in order, publishing stage_started and
// stage_completed events around each one. There are exactly three
// stages: validation, a dependency-resolution pass-through (the
// resolved graph is assumed already fetched by pkg/deps; this stage only
// reports the manifest's declared dependencies as events), and
// package compilation. There is no separate linking stage: cjc links
// directly when compiling the entry package.
type Pipeline struct {
	Stages []Stage
}

// NewPipeline returns the standard three-stage pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{Stages: []Stage{
		ValidationStage{},
		DependencyPassthroughStage{},
		CompileStage{},
	}}
}

// Run executes every stage in order against cc, stopping at the first
// error.
func (p *Pipeline) Run(ctx context.Context, cc *CompilationContext) error {
	if err := cc.ValidateAndSetDefaults(); err != nil {
		return err
	}

	correlationID := events.NewCorrelationID()
	cc.Bus.Publish(events.CompilationEvent{Kind: events.KindPipelineStarted, CorrelationID: correlationID, Time: timeNow()})

	for _, stage := range p.Stages {
		cc.Bus.Publish(events.CompilationEvent{Kind: events.KindStageStarted, CorrelationID: correlationID, StageName: stage.Name(), Time: timeNow()})
		err := stage.Run(ctx, cc)
		ev := events.CompilationEvent{Kind: events.KindStageCompleted, CorrelationID: correlationID, StageName: stage.Name(), Time: timeNow()}
		if err != nil {
			ev.Err = err.Error()
			cc.Bus.Publish(ev)
			cc.Bus.Publish(events.CompilationEvent{Kind: events.KindPipelineCompleted, CorrelationID: correlationID, Err: err.Error(), Time: timeNow()})
			return err
		}
		cc.Bus.Publish(ev)
	}

	cc.Bus.Publish(events.CompilationEvent{Kind: events.KindPipelineCompleted, CorrelationID: correlationID, Time: timeNow()})
	return nil
}

// timeNow returns the timestamp stamped on every pipeline event.
func timeNow() time.Time { return time.Now() }

// ValidationStage confirms the manifest and compilation context are
// internally consistent before any work begins.
type ValidationStage struct{}

// Name implements Stage.
func (ValidationStage) Name() string { return "validation" }

// Run implements Stage.
func (ValidationStage) Run(_ context.Context, cc *CompilationContext) error {
	if err := cc.Manifest.Validate(); err != nil {
		return err
	}
	cc.Bus.Publish(events.CompilationEvent{Kind: events.KindValidationNote, Message: "manifest validated", Time: timeNow()})
	return nil
}

// DependencyPassthroughStage reports the dependency set the manifest
// declares. Fetching and lock file reconciliation are pkg/deps's job,
// run before the compilation pipeline starts; this stage only surfaces
// what's declared so downstream events carry a complete picture of a
// build.
type DependencyPassthroughStage struct{}

// Name implements Stage.
func (DependencyPassthroughStage) Name() string { return "dependency-resolution" }

// Run implements Stage.
func (DependencyPassthroughStage) Run(_ context.Context, cc *CompilationContext) error {
	for name := range cc.Manifest.Deps {
		cc.Bus.Publish(events.CompilationEvent{Kind: events.KindDependencyNote, Message: "declared dependency: " + name, Time: timeNow()})
	}
	return nil
}

// CompileStage discovers packages, consults the incremental cache, and
// compiles whatever changed, bounded to cc.Jobs concurrent cjc
// invocations.
type CompileStage struct{}

// Name implements Stage.
func (CompileStage) Name() string { return "package-compilation" }

// Run implements Stage.
func (CompileStage) Run(ctx context.Context, cc *CompilationContext) error {
	packages, err := DiscoverPackages(cc.SourceDir)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		cc.Bus.Publish(events.CompilationEvent{Kind: events.KindPackageDiscovered, PackageName: pkg.Name, Time: timeNow()})
	}

	cache, err := NewIncrementalCache(cc.CacheDir)
	if err != nil {
		return err
	}

	correlationID := events.NewCorrelationID()
	p := pool.New().WithContext(ctx).WithMaxGoroutines(cc.Jobs).WithCancelOnError()

	for _, pkg := range packages {
		pkg := pkg
		p.Go(func(ctx context.Context) error {
			return compileOne(ctx, cc, cache, pkg, correlationID)
		})
	}

	return p.Wait()
}

func compileOne(ctx context.Context, cc *CompilationContext, cache *IncrementalCache, pkg PackageInfo, correlationID string) error {
	if cc.Config.Incremental {
		reason, err := cache.DetectChanges(pkg, cc.Config)
		if err != nil {
			return err
		}
		cc.Bus.Publish(events.CompilationEvent{Kind: events.KindChangeDetection, PackageName: pkg.Name, Changed: reason != ReasonNoChanges, Reason: string(reason), Time: timeNow()})
		if reason == ReasonNoChanges {
			cc.Bus.Publish(events.CompilationEvent{Kind: events.KindIncrementalCacheNote, PackageName: pkg.Name, Message: "using cached artifact", Time: timeNow()})
			return nil
		}
	}

	cc.Bus.Publish(events.CompilationEvent{Kind: events.KindPackageStarted, PackageName: pkg.Name, CorrelationID: correlationID, Time: timeNow()})

	var entryOutputType manifest.OutputType
	if cc.Manifest.Package != nil {
		entryOutputType = cc.Manifest.Package.OutputType
	}
	result, err := Invoke(ctx, cc.CjcPath, pkg, cc.Config, entryOutputType, cc.OutputDir, cc.Bus, correlationID)

	cc.Bus.Publish(events.CompilationEvent{
		Kind:          events.KindPackageCompleted,
		PackageName:   pkg.Name,
		CorrelationID: correlationID,
		Diagnostics:   result.Diagnostics,
		Time:          timeNow(),
	})

	if err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeCompile, err, "compiling package %q", pkg.Name)
	}

	if cc.Config.Incremental {
		if err := cache.Record(pkg, cc.Config, result.OutputPath); err != nil {
			return err
		}
	}
	return nil
}
