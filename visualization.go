package main

/*
WHAT'S GOING ON HERE?

Tools for looking at what the policy does while it learns.

KEY CONCEPTS:
- EpisodeMetrics: one data point per iteration (episode + training phase)
- HTML report: a self-contained file with reward and loss curves
- Attention heatmap: ASCII rendering of the last attention weights, for
  terminals

The HTML file has no external dependencies: open it in any browser.
*/

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// EpisodeMetrics stores per-iteration results of a simulation run.
type EpisodeMetrics struct {
	Iterations  []int
	MeanRewards []float64
	BestRewards []float64
	Losses      []float64
	FoodEaten   []int
	Survivors   []int
}

// NewEpisodeMetrics creates an empty tracker.
func NewEpisodeMetrics() *EpisodeMetrics {
	return &EpisodeMetrics{}
}

// Record adds one iteration.
func (m *EpisodeMetrics) Record(rec IterationRecord, foodEaten, survivors int) {
	m.Iterations = append(m.Iterations, rec.Iteration)
	m.MeanRewards = append(m.MeanRewards, rec.MeanReward)
	m.BestRewards = append(m.BestRewards, rec.BestReward)
	m.Losses = append(m.Losses, rec.Loss)
	m.FoodEaten = append(m.FoodEaten, foodEaten)
	m.Survivors = append(m.Survivors, survivors)
}

// Len returns the number of recorded iterations.
func (m *EpisodeMetrics) Len() int { return len(m.Iterations) }

// SaveHTML writes the metrics as a self-contained HTML page with a reward
// chart and a loss chart.
func (m *EpisodeMetrics) SaveHTML(filename string) error {
	if len(m.Iterations) == 0 {
		return fmt.Errorf("no metrics to save")
	}

	last := len(m.Iterations) - 1
	bestEver := m.BestRewards[0]
	for _, r := range m.BestRewards {
		bestEver = math.Max(bestEver, r)
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Foraging Run - gpt-insects</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
            background: #0d1117;
            color: #c9d1d9;
            padding: 20px;
            line-height: 1.6;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        h1 { font-size: 28px; margin-bottom: 10px; color: #58a6ff; }
        .stats {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 15px;
            margin: 20px 0 30px;
        }
        .stat-card {
            background: #161b22;
            border: 1px solid #30363d;
            border-radius: 6px;
            padding: 15px;
        }
        .stat-label { font-size: 12px; color: #8b949e; text-transform: uppercase; }
        .stat-value { font-size: 24px; font-weight: 600; color: #58a6ff; }
        .chart-container {
            background: #161b22;
            border: 1px solid #30363d;
            border-radius: 6px;
            padding: 20px;
            margin-bottom: 20px;
        }
        .chart-title { font-size: 18px; font-weight: 600; margin-bottom: 15px; }
        canvas { width: 100%% !important; height: 300px !important; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Foraging Run</h1>

        <div class="stats">
            <div class="stat-card">
                <div class="stat-label">Iterations</div>
                <div class="stat-value">%d</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Final Mean Reward</div>
                <div class="stat-value">%.2f</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Best Reward</div>
                <div class="stat-value">%.2f</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Final Loss</div>
                <div class="stat-value">%.4f</div>
            </div>
        </div>

        <div class="chart-container">
            <div class="chart-title">Reward (mean / best)</div>
            <canvas id="rewardChart"></canvas>
        </div>

        <div class="chart-container">
            <div class="chart-title">Training Loss</div>
            <canvas id="lossChart"></canvas>
        </div>
    </div>

    <script>
        const iterations = %s;
        const meanRewards = %s;
        const bestRewards = %s;
        const losses = %s;

        function drawChart(canvasId, series, yLabel) {
            const canvas = document.getElementById(canvasId);
            const ctx = canvas.getContext('2d');
            const dpr = window.devicePixelRatio || 1;
            const rect = canvas.getBoundingClientRect();
            canvas.width = rect.width * dpr;
            canvas.height = rect.height * dpr;
            ctx.scale(dpr, dpr);

            const width = rect.width, height = rect.height, padding = 50;
            const chartWidth = width - 2 * padding;
            const chartHeight = height - 2 * padding;

            const all = series.flatMap(s => s.data).filter(v => v !== null);
            const minVal = Math.min(...all);
            const maxVal = Math.max(...all);
            const range = (maxVal - minVal) || 1;
            const minIt = Math.min(...iterations);
            const itRange = (Math.max(...iterations) - minIt) || 1;

            ctx.strokeStyle = '#30363d';
            ctx.beginPath();
            ctx.moveTo(padding, padding);
            ctx.lineTo(padding, height - padding);
            ctx.lineTo(width - padding, height - padding);
            ctx.stroke();

            ctx.fillStyle = '#8b949e';
            ctx.font = '11px monospace';
            ctx.textAlign = 'right';
            for (let i = 0; i <= 5; i++) {
                const y = padding + chartHeight * i / 5;
                ctx.fillText((maxVal - range * i / 5).toFixed(3), padding - 10, y + 4);
            }

            for (const s of series) {
                ctx.strokeStyle = s.color;
                ctx.lineWidth = 2;
                ctx.beginPath();
                s.data.forEach((v, i) => {
                    const x = padding + chartWidth * (iterations[i] - minIt) / itRange;
                    const y = height - padding - chartHeight * (v - minVal) / range;
                    if (i === 0) ctx.moveTo(x, y); else ctx.lineTo(x, y);
                });
                ctx.stroke();
            }

            ctx.fillStyle = '#c9d1d9';
            ctx.font = '12px sans-serif';
            ctx.textAlign = 'center';
            ctx.fillText('Iteration', width / 2, height - 10);
            ctx.save();
            ctx.translate(15, height / 2);
            ctx.rotate(-Math.PI / 2);
            ctx.fillText(yLabel, 0, 0);
            ctx.restore();
        }

        function drawAll() {
            drawChart('rewardChart', [
                { data: meanRewards, color: '#58a6ff' },
                { data: bestRewards, color: '#56d364' },
            ], 'Reward');
            drawChart('lossChart', [{ data: losses, color: '#f78166' }], 'Loss');
        }
        window.onload = drawAll;
        window.onresize = drawAll;
    </script>
</body>
</html>`, len(m.Iterations), m.MeanRewards[last], bestEver, m.Losses[last],
		formatJSArray(m.Iterations),
		formatJSArrayFloat(m.MeanRewards),
		formatJSArrayFloat(m.BestRewards),
		formatJSArrayFloat(m.Losses))

	return os.WriteFile(filename, []byte(html), 0644)
}

// formatJSArray formats an int slice as a JavaScript array
func formatJSArray(arr []int) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, v := range arr {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	sb.WriteString("]")
	return sb.String()
}

// formatJSArrayFloat formats a float64 slice as a JavaScript array. NaN
// becomes null so the page still loads.
func formatJSArrayFloat(arr []float64) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, v := range arr {
		if i > 0 {
			sb.WriteString(",")
		}
		switch {
		case math.IsNaN(v):
			sb.WriteString("null")
		case math.IsInf(v, 1):
			sb.WriteString("1e308")
		case math.IsInf(v, -1):
			sb.WriteString("-1e308")
		default:
			fmt.Fprintf(&sb, "%.6f", v)
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// heatShades maps a weight in [0, 1] to a character, darkest last.
var heatShades = []rune(" ·░▒▓█")

// RenderAttention writes one heatmap row per head of every layer: the
// weights the last token put on each cached position. labels, if given,
// name the positions.
func RenderAttention(w io.Writer, attn [][][]float64, labels []string) {
	for l, heads := range attn {
		fmt.Fprintf(w, "Layer %d\n", l)
		if len(heads) > 0 && len(labels) == len(heads[0]) {
			fmt.Fprintf(w, "  positions: %s\n", strings.Join(labels, " "))
		}
		for h, weights := range heads {
			if len(weights) == 0 {
				continue
			}
			var sb strings.Builder
			for _, wt := range weights {
				idx := int(math.Round(clamp(wt, 0, 1) * float64(len(heatShades)-1)))
				sb.WriteRune(heatShades[idx])
			}
			top := Argmax(weights)
			fmt.Fprintf(w, "  head %d │%s│ max %.2f @%d\n", h, sb.String(), weights[top], top)
		}
	}
}
