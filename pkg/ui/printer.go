package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

var (
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
)

// 40 display width should be enough for most Chinese step names
const stepNameWidth = 40

func PrintStepStart(w io.Writer, prefix, name string) {
	fmt.Fprintf(w, "%s%s %s", prefix, Cyan("▶ [STEP]"), runewidth.FillRight(name, stepNameWidth))
}

func PrintSkipped(w io.Writer, d time.Duration) {
	fmt.Fprintf(w, " %s (%v)\n", Yellow("⏭ 已就绪, 跳过"), d.Round(time.Millisecond))
}

func PrintToExecute(w io.Writer) {
	fmt.Fprint(w, " ...\n")
}

func PrintDryRunSkipped(w io.Writer, prefix string, d time.Duration) {
	fmt.Fprintf(w, "%s     %s (%v)\n", prefix, Yellow("⏭ 预检查模式, 不执行"), d.Round(time.Millisecond))
}

func PrintError(w io.Writer, prefix string, err error, d time.Duration) {
	fmt.Fprintf(w, "%s     %s %v (%v)\n", prefix, Red("✖ 错误:"), err, d.Round(time.Millisecond))
}

func PrintSuccess(w io.Writer, prefix string, d time.Duration) {
	fmt.Fprintf(w, "%s     %s (%v)\n", prefix, Green("✔ 完成"), d.Round(time.Millisecond))
}

func PrintPipelineSummary(w io.Writer, prefix string, d time.Duration, success bool) {
	status := Green("成功")
	if !success {
		status = Red("失败")
	}
	fmt.Fprintf(w, "%s%s 所有步骤执行完毕, 结果: %s, 总耗时: %v\n", prefix, Green("✨"), status, d.Round(time.Second))
}
