package stack

import(
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v2"
)

// Provenance records what a run actually did: how many frames came
// in, how many were used, why the rest were excluded, and the knobs
// that shaped the result. Written alongside the stacked image so a
// result is never just an unexplained picture.
type Provenance struct {
	RunID          string
	Started        time.Time
	Elapsed        time.Duration
	TotalFrames    int
	UsedFrames     int
	Rejected       map[string]int
	ReferenceFrame int
	ReferenceSigma float64
	LimbCorrected  bool

	// Echo of the knobs that shaped the result
	Target        string
	Mount         string
	DrizzleScale  float64
	DropFootprint string
	MinSigma      float64
	MaxSigma      float64
	TopPercentage float64
	LimbStage     string
}

func NewProvenance(cfg Config) Provenance {
	return Provenance{
		RunID:         uuid.New().String(),
		Started:       time.Now().UTC(),
		Rejected:      map[string]int{},
		Target:        cfg.Target,
		Mount:         cfg.Mount,
		DrizzleScale:  cfg.DrizzleScale,
		DropFootprint: cfg.Drop.String(),
		MinSigma:      cfg.MinSigma,
		MaxSigma:      cfg.MaxSigma,
		TopPercentage: cfg.TopPercentage,
		LimbStage:     cfg.Limb.String(),
	}
}

func (p *Provenance)Reject(reason string)        { p.Rejected[reason]++ }
func (p *Provenance)RejectN(reason string, n int) {
	if n > 0 {
		p.Rejected[reason] += n
	}
}

func (p Provenance)RejectedTotal() int {
	total := 0
	for _, n := range p.Rejected {
		total += n
	}
	return total
}

// Table renders the run summary for the console.
func (p Provenance)Table() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Run", p.RunID})

	tw.AppendRow(table.Row{"target", fmt.Sprintf("%s (%s mount)", p.Target, p.Mount)})
	tw.AppendRow(table.Row{"drizzle", fmt.Sprintf("%gx, %s drop", p.DrizzleScale, p.DropFootprint)})
	tw.AppendRow(table.Row{"frames in", p.TotalFrames})
	tw.AppendRow(table.Row{"frames stacked", p.UsedFrames})

	reasons := make([]string, 0, len(p.Rejected))
	for reason := range p.Rejected {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		tw.AppendRow(table.Row{"rejected: " + reason, p.Rejected[reason]})
	}

	tw.AppendRow(table.Row{"reference frame", fmt.Sprintf("%d (sigma %.5f)", p.ReferenceFrame, p.ReferenceSigma)})
	tw.AppendRow(table.Row{"limb correction", fmt.Sprintf("%s (applied: %v)", p.LimbStage, p.LimbCorrected)})
	tw.AppendRow(table.Row{"elapsed", p.Elapsed.Round(time.Millisecond).String()})

	return tw.Render()
}

// Save writes the provenance record as a YAML sidecar.
func (p Provenance)Save(path string) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("provenance marshal: %v", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("provenance write '%s': %v", path, err)
	}
	return nil
}
