package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/intentflow/component"
)

// DisplaySummary prints the startup banner: service, startup time and one
// line per described component with its health.
func (a *App[C]) DisplaySummary(ctx context.Context) {
	fmt.Fprint(a.summaryOut, a.summary(ctx))
}

func (a *App[C]) summary(ctx context.Context) string {
	health := make(map[string]component.Health)
	for _, h := range a.Components.HealthAll(ctx) {
		health[h.Name] = h
	}

	var b strings.Builder
	rule := strings.Repeat("─", 60)
	fmt.Fprintf(&b, "%s\n %s %s\n", rule, a.Name, a.Version)
	if !a.startedAt.IsZero() {
		fmt.Fprintf(&b, " started in %s\n", time.Since(a.startedAt).Round(time.Millisecond))
	}
	descs := a.Components.Descriptions()
	if len(descs) > 0 {
		b.WriteString(rule + "\n")
	}
	for _, d := range descs {
		mark := "✓"
		if h, ok := health[d.Name]; ok && h.Status != component.StatusHealthy {
			mark = "✗"
		}
		line := fmt.Sprintf(" %s %-14s %-8s %s", mark, d.Name, d.Type, d.Details)
		if d.Port > 0 {
			line += fmt.Sprintf(" :%d", d.Port)
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	b.WriteString(rule + "\n")
	return b.String()
}
