package runner

import (
	"context"
	"io"
	"time"

	"pve-k3s-tool/pkg/ui"
)

// Step 代表一个引导步骤
type Step struct {
	Name   string
	Check  func() (bool, error)
	Action func(ctx context.Context) error
}

func RunPipeline(ctx context.Context, steps []Step, prefix string, output io.Writer, dryRun bool) error {
	start := time.Now()
	var err error
	for _, step := range steps {
		if err = runStep(ctx, step, prefix, output, dryRun); err != nil {
			break
		}
	}
	ui.PrintPipelineSummary(output, prefix, time.Since(start), err == nil)
	return err
}

func runStep(ctx context.Context, step Step, prefix string, output io.Writer, dryRun bool) error {
	start := time.Now()

	// 输出增加前缀
	ui.PrintStepStart(output, prefix, step.Name)

	// 1. Check
	if step.Check != nil {
		ok, err := step.Check()
		if err != nil {
			ui.PrintError(output, prefix, err, time.Since(start))
			return err
		}
		if ok {
			ui.PrintSkipped(output, time.Since(start))
			return nil
		}
	}
	ui.PrintToExecute(output)

	if dryRun {
		ui.PrintDryRunSkipped(output, prefix, time.Since(start))
		return nil
	}

	// 2. Action
	if err := step.Action(ctx); err != nil {
		ui.PrintError(output, prefix, err, time.Since(start))
		return err
	}

	ui.PrintSuccess(output, prefix, time.Since(start))
	return nil
}
