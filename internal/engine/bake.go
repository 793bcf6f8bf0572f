package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/scene2video/internal/anim"
	"github.com/ivlev/scene2video/internal/system"
)

// Table holds the value of every named source at each frame time
type Table struct {
	Scene   string   `yaml:"scene"`
	FPS     int      `yaml:"fps"`
	Skipped []string `yaml:"skipped,omitempty"`
	Samples []Sample `yaml:"samples"`
}

type Sample struct {
	Time   float64              `yaml:"time"`
	Values map[string]Component `yaml:"values"`
}

// Component is written as a flow sequence so one sample fits on a line
type Component []float64

func (c Component) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, f := range c {
		var item yaml.Node
		if err := item.Encode(f); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &item)
	}
	return n, nil
}

// Bake samples every track and velocity of the scene at each frame time.
// Buffer sources are listed in Skipped.
func (p *Project) Bake(ctx context.Context) (*Table, error) {
	n := p.FrameCount()
	table := &Table{Scene: p.Scene.Name, FPS: p.Config.FPS, Samples: make([]Sample, n)}

	var names []string
	for _, name := range p.Scene.SourceNames() {
		if p.Scene.Sources[name].Kind() == anim.KindBuffer {
			table.Skipped = append(table.Skipped, name)
			continue
		}
		names = append(names, name)
	}

	// Каждый источник считается отдельной колонкой, потом склеиваем по кадрам
	columns := make([][]Component, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for c, name := range names {
		g.Go(func() error {
			src := p.Scene.Sources[name]
			col := make([]Component, n)
			for i := range col {
				if err := gctx.Err(); err != nil {
					return err
				}
				v, err := src.Evaluate(p.FrameTime(i))
				if err != nil {
					return fmt.Errorf("bake %s at frame %d: %w", name, i, err)
				}
				col[i] = v.Components()
			}
			columns[c] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range table.Samples {
		values := make(map[string]Component, len(names))
		for c, name := range names {
			values[name] = columns[c][i]
		}
		table.Samples[i] = Sample{Time: p.FrameTime(i), Values: values}
	}
	system.Logger().Debug("baked", "scene", p.Scene.Name, "sources", len(names), "samples", n)
	return table, nil
}

// Encode writes the table as YAML
func (t *Table) Encode() ([]byte, error) {
	return yaml.Marshal(t)
}
