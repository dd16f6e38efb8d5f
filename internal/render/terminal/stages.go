package terminal

import (
	"time"

	"github.com/framecore/framecore/internal/core/effect"
	"github.com/framecore/framecore/internal/core/scheduler"
	"github.com/framecore/framecore/internal/scene"
	"github.com/gdamore/tcell/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	_ effect.Stage[*Buffer] = (*ScenePass)(nil)
	_ effect.Stage[*Buffer] = (*Fade)(nil)
	_ effect.Stage[*Buffer] = (*StatsOverlay)(nil)
	_ effect.Stage[*Buffer] = (*Output)(nil)
)

// NewPipeline returns an effect pipeline over two terminal buffers.
func NewPipeline(opts ...effect.Option[*Buffer]) *effect.Pipeline[*Buffer] {
	return effect.New(NewBuffer(0, 0), NewBuffer(0, 0), opts...)
}

// ScenePass rasterizes the scene into the write buffer.
type ScenePass struct {
	graph  *scene.Graph
	camera *scene.Node
}

func NewScenePass(g *scene.Graph, camera *scene.Node) *ScenePass {
	return &ScenePass{graph: g, camera: camera}
}

func (s *ScenePass) Name() string    { return "scene" }
func (s *ScenePass) NeedsSwap() bool { return true }

func (s *ScenePass) Render(_, write *Buffer) error {
	write.Clear()
	DrawScene(write, s.graph.Root(), s.camera)
	return nil
}

// Fade leaves a dimming trail behind moving glyphs. Each frame, cells the
// scene left empty show the previous frame's cell with its foreground
// scaled by the fade factor, until it is too dark to see.
type Fade struct {
	factor  float64
	history *Buffer
	off     bool
}

// minTrail is the brightest channel below which a trail cell is dropped.
const minTrail = 24

func NewFade(factor float64) *Fade {
	return &Fade{factor: factor, history: NewBuffer(0, 0)}
}

func (f *Fade) Name() string    { return "fade" }
func (f *Fade) NeedsSwap() bool { return true }
func (f *Fade) Enabled() bool   { return !f.off && f.factor > 0 }

// SetEnabled switches the stage without removing it.
func (f *Fade) SetEnabled(on bool) { f.off = !on }

func (f *Fade) SetSize(w, h int) { f.history.SetSize(w, h) }

func (f *Fade) Render(read, write *Buffer) error {
	if w, h := read.Size(); w != f.history.width || h != f.history.height {
		f.history.SetSize(w, h)
	}
	write.CopyFrom(read)
	for i, c := range read.cells {
		if !c.Empty() {
			f.history.cells[i] = c
			continue
		}
		prev := f.history.cells[i]
		if prev.Empty() {
			continue
		}
		dim, ok := f.dim(prev.FG)
		if !ok {
			f.history.cells[i] = emptyCell
			continue
		}
		prev.FG = dim
		f.history.cells[i] = prev
		write.cells[i] = prev
	}
	return nil
}

func (f *Fade) dim(c tcell.Color) (tcell.Color, bool) {
	if c == tcell.ColorDefault {
		c = tcell.ColorWhite
	}
	r, g, b := c.RGB()
	r = int32(float64(r) * f.factor)
	g = int32(float64(g) * f.factor)
	b = int32(float64(b) * f.factor)
	if max(r, g, b) < minTrail {
		return tcell.ColorDefault, false
	}
	return tcell.NewRGBColor(r, g, b), true
}

// StatsSource is what the overlay reports on.
type StatsSource interface {
	PerformanceData() scheduler.Performance
}

// StatsOverlay draws a one-line rate readout in the top-left corner of the
// read buffer in place.
type StatsOverlay struct {
	source  StatsSource
	printer *message.Printer
	off     bool
}

func NewStatsOverlay(source StatsSource) *StatsOverlay {
	return &StatsOverlay{
		source:  source,
		printer: message.NewPrinter(language.English),
	}
}

func (s *StatsOverlay) Name() string  { return "stats" }
func (s *StatsOverlay) Enabled() bool { return !s.off }

func (s *StatsOverlay) SetEnabled(on bool) { s.off = !on }

// Line formats the readout.
func (s *StatsOverlay) Line() string {
	p := s.source.PerformanceData()
	return s.printer.Sprintf("%.1f fps  avg %.1f  min %.1f  max %.1f  frames %d  update %s",
		p.Current, p.Average, p.Min, p.Max, p.Frames, p.Timings["update"].Round(time.Microsecond))
}

func (s *StatsOverlay) Render(read, _ *Buffer) error {
	read.DrawText(0, 0, s.Line(), tcell.ColorYellow, tcell.ColorDefault)
	return nil
}

// Output is the terminal stage: it copies the read buffer to the screen.
type Output struct {
	screen tcell.Screen
}

func NewOutput(screen tcell.Screen) *Output {
	return &Output{screen: screen}
}

func (o *Output) Name() string   { return "output" }
func (o *Output) Terminal() bool { return true }

func (o *Output) Render(read, _ *Buffer) error {
	if o.screen == nil {
		return ErrNoScreen
	}
	blit(o.screen, read)
	return nil
}
