package roomdb

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vilterp/roomdb/pkg/illumination"
	clog "github.com/vilterp/roomdb/pkg/log"
	"github.com/vilterp/roomdb/pkg/vision"
)

// GraphicsQuery selects every program's current drawing.
var GraphicsQuery = []string{"$owner draw graphics %graphics"}

// Drawing is the graphics one fact asked for.
type Drawing struct {
	Owner    string                 `json:"owner"`
	Graphics []illumination.Graphic `json:"graphics"`
}

// Renderer is the rendering front end.
type Renderer interface {
	Render(ctx context.Context, frame []Drawing) error
}

// ProgramSyncer starts and stops programs as their markers appear and disappear.
type ProgramSyncer interface {
	Sync(ctx context.Context, seen []int)
}

type DriverConfig struct {
	// VisionID tags detection facts; every batch replaces that namespace.
	VisionID string
	Programs ProgramSyncer
	Renderer Renderer
}

// Driver is the consumer loop: it pulls detection batches and, for each,
// refreshes the detection facts, syncs programs, runs subscriptions and renders.
type Driver struct {
	db    *Database
	queue *vision.Queue
	cfg   DriverConfig
	ctx   context.Context
}

func NewDriver(db *Database, queue *vision.Queue, cfg DriverConfig) *Driver {
	return &Driver{
		db:    db,
		queue: queue,
		cfg:   cfg,
		ctx:   db.Ctx(),
	}
}

func (d *Driver) Ctx() context.Context {
	return d.ctx
}

// Run blocks until ctx is done or the queue is closed and drained.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-d.queue.Out():
			if !ok {
				return nil
			}
			if err := d.Step(ctx, batch); err != nil {
				clog.Errorf(d, "step: %v", err)
			}
		}
	}
}

// Step applies one batch. Subscription and render failures are reported but
// never undo the store update.
func (d *Driver) Step(ctx context.Context, batch vision.Batch) error {
	startTime := time.Now()
	defer func() {
		d.db.metrics.frameLatency.Observe(float64(time.Since(startTime).Nanoseconds()))
	}()

	d.db.Replace(vision.NamespacePattern(d.cfg.VisionID), batch.Facts(d.cfg.VisionID))
	d.db.metrics.visionBatches.Inc()

	if d.cfg.Programs != nil {
		d.cfg.Programs.Sync(ctx, batch.IDs())
	}

	evalErr := d.db.EvaluateSubscriptions(ctx)

	if d.cfg.Renderer != nil {
		if err := d.cfg.Renderer.Render(ctx, d.db.Drawings(ctx)); err != nil {
			return errors.Wrap(err, "rendering")
		}
	}
	return errors.Wrap(evalErr, "evaluating subscriptions")
}

// Drawings decodes every graphics fact. Facts that don't decode are logged
// and skipped.
func (db *Database) Drawings(ctx context.Context) []Drawing {
	var drawings []Drawing
	for _, env := range db.Select(GraphicsQuery) {
		owner, _ := env.Lookup("owner")
		text, _ := env.Lookup("graphics")
		graphics, err := illumination.Decode(text.Value)
		if err != nil {
			db.metrics.droppedGraphics.Inc()
			clog.Errorf(clog.From(ctx), "bad graphics from %s: %v", owner, err)
			continue
		}
		drawings = append(drawings, Drawing{Owner: owner.String(), Graphics: graphics})
	}
	return drawings
}

// JSONRenderer writes each frame as one JSON line.
type JSONRenderer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ Renderer = &JSONRenderer{}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(_ context.Context, frame []Drawing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if frame == nil {
		frame = []Drawing{}
	}
	return r.enc.Encode(frame)
}
