package provision

import (
	"context"
	"fmt"
	"io"

	"pve-k3s-tool/pkg/config"
	"pve-k3s-tool/pkg/ui"
)

type nodeResult struct {
	IP       string
	IsMaster bool
	Err      error
}

// Run 依次引导所有节点: control 节点先行, 成功后 worker 才能从
// 共享存储读到 join record。任一节点失败即中止。
func Run(ctx context.Context, cfg *config.Config, dryRun bool, reportPath string, summary io.Writer) error {
	if err := config.ValidateProvision(cfg); err != nil {
		return err
	}

	order := nodeOrder(cfg)

	contexts := make([]*ui.NodeContext, 0, len(order))
	byIndex := make(map[int]*ui.NodeContext, len(order))
	for _, i := range order {
		roleName := "Worker"
		if cfg.Nodes[i].IsMaster {
			roleName = "Control"
		}
		nc := ui.NewNodeContext(cfg.Nodes[i].IP, roleName, TotalSteps, dryRun)
		contexts = append(contexts, nc)
		byIndex[i] = nc
	}

	_, waitTUI := ui.SetupTUI(contexts)

	results := make([]nodeResult, 0, len(order))
	var firstErr error
	for _, i := range order {
		res := runNode(ctx, cfg, i, byIndex[i], dryRun)
		results = append(results, res)
		if res.Err != nil {
			firstErr = res.Err
			break
		}
	}
	waitTUI()

	if reportPath != "" {
		if err := ui.GenerateFinalReport(contexts, reportPath); err != nil {
			fmt.Fprintf(summary, "写入报告 %s 失败: %v\n", reportPath, err)
		}
	}
	printSummary(summary, results, dryRun)

	if firstErr != nil {
		return firstErr
	}
	return nil
}

func runNode(ctx context.Context, cfg *config.Config, i int, nodeCtx *ui.NodeContext, dryRun bool) nodeResult {
	mgr, err := NewManager(cfg, &cfg.Nodes[i], nodeCtx)
	if err != nil {
		nodeCtx.Err = err
		nodeCtx.Finish(false, 0)
		return nodeResult{IP: cfg.Nodes[i].IP, IsMaster: cfg.Nodes[i].IsMaster, Err: err}
	}
	defer mgr.Close()

	err = mgr.Run(ctx, dryRun)
	if err != nil {
		err = fmt.Errorf("[%s] Failed: %v", cfg.Nodes[i].IP, err)
	}
	return nodeResult{IP: cfg.Nodes[i].IP, IsMaster: cfg.Nodes[i].IsMaster, Err: err}
}

// nodeOrder 返回执行顺序: control 节点最先, 其余按配置顺序
func nodeOrder(cfg *config.Config) []int {
	order := make([]int, 0, len(cfg.Nodes))
	for i := range cfg.Nodes {
		if cfg.Nodes[i].IsMaster {
			order = append(order, i)
		}
	}
	for i := range cfg.Nodes {
		if !cfg.Nodes[i].IsMaster {
			order = append(order, i)
		}
	}
	return order
}

func printSummary(w io.Writer, results []nodeResult, dryRun bool) {
	if len(results) == 0 {
		return
	}
	action := "引导"
	if dryRun {
		action = "预检查"
	}
	fmt.Fprintf(w, "\n%s结果汇总:\n", action)
	for _, result := range results {
		role := "Worker"
		if result.IsMaster {
			role = "Control"
		}
		status := "成功"
		if result.Err != nil {
			status = "失败"
		}
		line := fmt.Sprintf(" - %s (%s): %s", result.IP, role, status)
		if result.Err != nil {
			line = fmt.Sprintf("%s (%v)", line, result.Err)
		}
		fmt.Fprintln(w, line)
	}
}
