// Package operations orchestrates a segmentation run as a sequence of steps.
//
// Core components:
//
// Step: one unit of work (cleaning, rfm, features, evaluation, clustering,
// profiling). A step reads its input table from the run state when an earlier
// step produced it in this run, and from its configured file otherwise, so a
// single step can be re-run against files left by a previous run.
//
// Registry: keeps steps in registration order and derives the execution order
// from their declared dependencies.
//
// OperationState: the runtime state of one run, holding per-step status and
// the tables exchanged between steps.
//
// Manager: executes the steps sequentially. The first failing step fails the
// run, every later step is marked skipped and no retry is attempted.
//
// Example usage:
//
//	manager, err := operations.NewPipeline(cfg, logger, metrics)
//	if err != nil {
//		return err
//	}
//	report, err := manager.Execute(ctx, operations.Request{})
package operations
