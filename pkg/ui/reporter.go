package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// NodeContext 聚合单个节点远程引导的进度与日志
type NodeContext struct {
	IP          string
	Role        string // "Control" or "Worker"
	IsDryRun    bool
	TotalSteps  int
	CurrentStep int

	CurrentStepName   string
	CurrentStepStatus string
	Bar               *mpb.Bar
	LogBuffer         *bytes.Buffer
	Duration          time.Duration
	Err               error
	Success           bool
	Mu                sync.Mutex
}

func NewNodeContext(ip, role string, totalSteps int, isDryRun bool) *NodeContext {
	return &NodeContext{
		IP:         ip,
		Role:       role,
		IsDryRun:   isDryRun,
		TotalSteps: totalSteps,
		LogBuffer:  new(bytes.Buffer),
	}
}

func (n *NodeContext) SetBar(bar *mpb.Bar) {
	n.Bar = bar
}

func (n *NodeContext) StartStep(name string) {
	n.Mu.Lock()
	defer n.Mu.Unlock()
	n.CurrentStep++
	n.CurrentStepName = name
	n.CurrentStepStatus = Cyan("🔍 检查中...")
}

func (n *NodeContext) EndStep(err error, duration time.Duration) {
	n.Mu.Lock()
	defer n.Mu.Unlock()

	if err != nil {
		n.Err = err
		n.CurrentStepStatus = Red("✖ 错误")
	} else {
		n.CurrentStepStatus = Green("✔ 完成")
		if n.Bar != nil {
			n.Bar.Increment()
		}
	}
}

func (n *NodeContext) Finish(success bool, duration time.Duration) {
	n.Mu.Lock()
	defer n.Mu.Unlock()
	n.Success = success
	n.Duration = duration
	if n.Bar != nil {
		n.Bar.Abort(false)
	}
}

func (n *NodeContext) Write(p []byte) (int, error) {
	n.Mu.Lock()
	defer n.Mu.Unlock()
	return n.LogBuffer.Write(p)
}

// SetupTUI 为所有节点建一组进度条, control 组在前
func SetupTUI(nodes []*NodeContext) (*mpb.Progress, func()) {
	p := mpb.New(mpb.WithWidth(40))
	var headerBars []*mpb.Bar

	emptyFiller := mpb.BarFillerFunc(func(w io.Writer, _ decor.Statistics) error {
		return nil
	})

	addHeader := func(role string) {
		count := 0
		for _, n := range nodes {
			if n.Role == role {
				count++
			}
		}
		if count == 0 {
			return
		}

		bar := p.MustAdd(0, emptyFiller,
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					total := 0
					running := 0
					completed := 0
					for _, n := range nodes {
						if n.Role == role {
							total++
							n.Mu.Lock()
							if n.Success || n.Err != nil {
								completed++
							} else if n.CurrentStep > 0 {
								running++
							}
							n.Mu.Unlock()
						}
					}
					icon := "📦"
					if role == "Worker" {
						icon = "💻"
					}
					return fmt.Sprintf("%s %s 节点组 [%d/%d 运行中, %d 完成]", icon, role, running, total, completed)
				}),
			),
		)
		headerBars = append(headerBars, bar)
	}

	addHeader("Control")
	for _, node := range nodes {
		if node.Role == "Control" {
			addNodeBar(p, node)
		}
	}

	addHeader("Worker")
	for _, node := range nodes {
		if node.Role == "Worker" {
			addNodeBar(p, node)
		}
	}

	return p, func() {
		for _, b := range headerBars {
			b.Abort(false)
		}
		p.Wait()
	}
}

func addNodeBar(p *mpb.Progress, node *NodeContext) {
	name := fmt.Sprintf("[%s]", node.IP)

	statusDecorator := decor.Any(func(s decor.Statistics) string {
		node.Mu.Lock()
		defer node.Mu.Unlock()

		if node.Err != nil {
			if node.CurrentStepName == "" {
				return Red(fmt.Sprintf("✖ 失败: %v", node.Err))
			}
			return Red(fmt.Sprintf("✖ 失败: [%s]", node.CurrentStepName))
		}

		if node.Success {
			if node.IsDryRun {
				return Green(fmt.Sprintf("✔ 预检查完成 (%v)", node.Duration.Round(time.Second)))
			}
			return Green(fmt.Sprintf("✔ 引导成功 (%v)", node.Duration.Round(time.Second)))
		}

		if node.CurrentStep == 0 {
			return Yellow("⏳ 等待执行...")
		}
		return fmt.Sprintf("⏳ [%02d/%02d] %s: %s", node.CurrentStep, node.TotalSteps, node.CurrentStepName, node.CurrentStepStatus)
	})

	bar := p.MustAdd(int64(node.TotalSteps),
		mpb.BarStyle().Build(),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: 16, C: decor.DindentRight | decor.DSyncWidth}),
			decor.Percentage(decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name(" "),
			statusDecorator,
		),
	)
	node.SetBar(bar)
}

// GenerateFinalReport 把各节点日志按组写入报告文件
func GenerateFinalReport(nodes []*NodeContext, reportPath string) error {
	file, err := os.Create(reportPath)
	if err != nil {
		return err
	}
	defer file.Close()

	file.WriteString("================ k3s 节点引导详细报告 ================\n\n")

	file.WriteString("📦 [Control 节点组执行历史]\n")
	for _, node := range nodes {
		if node.Role == "Control" {
			file.WriteString(fmt.Sprintf("---------------- %s ----------------\n", node.IP))
			file.Write(node.LogBuffer.Bytes())
			file.WriteString("\n")
		}
	}

	file.WriteString("💻 [Worker 节点组执行历史]\n")
	for _, node := range nodes {
		if node.Role == "Worker" {
			file.WriteString(fmt.Sprintf("---------------- %s ----------------\n", node.IP))
			file.Write(node.LogBuffer.Bytes())
			file.WriteString("\n")
		}
	}

	return nil
}
