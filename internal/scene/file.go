package scene

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML description of a scene
type File struct {
	Version     string               `yaml:"version"`
	Name        string               `yaml:"name"`
	Duration    float64              `yaml:"duration"`     // Seconds
	AspectRatio []int                `yaml:"aspect_ratio"` // Width, height
	ClearColor  Components           `yaml:"clear_color,omitempty"`
	Tracks      map[string]TrackSpec `yaml:"tracks,omitempty"`
	Velocities  map[string]string    `yaml:"velocities,omitempty"` // Velocity name -> track name
	Root        NodeSpec             `yaml:"root"`
}

// TrackSpec is a named keyframe track
type TrackSpec struct {
	Kind      string         `yaml:"kind"`
	Keyframes []KeyframeSpec `yaml:"keyframes"`
}

// KeyframeSpec is one keyframe. Easing applies to the segment starting here.
type KeyframeSpec struct {
	Time    float64    `yaml:"time"`
	Value   Components `yaml:"value"`
	Easing  string     `yaml:"easing,omitempty"`
	Args    []float64  `yaml:"args,omitempty"`
	Offsets []float64  `yaml:"offsets,omitempty"` // Start, end
}

// NodeSpec holds exactly one of its fields
type NodeSpec struct {
	Group     []NodeSpec     `yaml:"group,omitempty"`
	Draw      *DrawSpec      `yaml:"draw,omitempty"`
	Rotate    *RotateSpec    `yaml:"rotate,omitempty"`
	Translate *TranslateSpec `yaml:"translate,omitempty"`
	Scale     *ScaleSpec     `yaml:"scale,omitempty"`
}

type DrawSpec struct {
	Geometry GeometrySpec       `yaml:"geometry"`
	Program  string             `yaml:"program"`
	Uniforms map[string]Binding `yaml:"uniforms,omitempty"`
	Texture  string             `yaml:"texture,omitempty"` // Reference passed to the TextureLoader
}

type RotateSpec struct {
	Angle  Binding    `yaml:"angle"` // Degrees
	Axis   Components `yaml:"axis,omitempty"`
	Anchor Components `yaml:"anchor,omitempty"`
	Child  NodeSpec   `yaml:"child"`
}

type TranslateSpec struct {
	Vector Binding  `yaml:"vector"`
	Child  NodeSpec `yaml:"child"`
}

type ScaleSpec struct {
	Factors Binding    `yaml:"factors"`
	Anchor  Components `yaml:"anchor,omitempty"`
	Child   NodeSpec   `yaml:"child"`
}

// GeometrySpec describes a quad, triangle, circle or mesh
type GeometrySpec struct {
	Type string `yaml:"type"`

	// quad
	Corner Components `yaml:"corner,omitempty"`
	Width  Components `yaml:"width,omitempty"`
	Height Components `yaml:"height,omitempty"`

	// triangle
	Corners []Components `yaml:"corners,omitempty"`

	// circle
	Radius float64 `yaml:"radius,omitempty"`
	Points int     `yaml:"points,omitempty"`

	// mesh
	Vertices *Binding `yaml:"vertices,omitempty"`
	Indices  []uint16 `yaml:"indices,omitempty,flow"`
}

// Components is a number or a list of numbers
type Components []float64

func (c *Components) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("line %d: expected a number: %w", node.Line, err)
		}
		*c = Components{f}
		return nil
	case yaml.SequenceNode:
		var fs []float64
		if err := node.Decode(&fs); err != nil {
			return fmt.Errorf("line %d: expected a list of numbers: %w", node.Line, err)
		}
		*c = fs
		return nil
	}
	return fmt.Errorf("line %d: expected a number or a list of numbers", node.Line)
}

func (c Components) MarshalYAML() (interface{}, error) {
	if len(c) == 1 {
		return c[0], nil
	}
	return flowList(c), nil
}

// Binding is either a reference to a named track or velocity, or a constant
type Binding struct {
	Ref   string
	Value Components
}

// Ref returns a binding to the source called name
func Ref(name string) Binding {
	return Binding{Ref: name}
}

// Const returns a constant binding
func Const(comps ...float64) Binding {
	return Binding{Value: comps}
}

func (b Binding) IsZero() bool {
	return b.Ref == "" && b.Value == nil
}

// UnmarshalYAML reads a string as a reference and anything else as a
// constant. An unquoted name such as 1 or true is not a string to YAML,
// which is why Build rejects source names like that.
func (b *Binding) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str" {
		b.Ref, b.Value = node.Value, nil
		return nil
	}
	b.Ref = ""
	return b.Value.UnmarshalYAML(node)
}

func (b Binding) MarshalYAML() (interface{}, error) {
	if b.Ref != "" {
		return b.Ref, nil
	}
	return b.Value.MarshalYAML()
}

// plainName reports whether name written unquoted reads back as a string
func plainName(name string) bool {
	n := yaml.Node{Kind: yaml.ScalarNode, Value: name}
	return n.ShortTag() == "!!str"
}

func flowList(c []float64) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, f := range c {
		item := &yaml.Node{}
		_ = item.Encode(f)
		n.Content = append(n.Content, item)
	}
	return n
}

// Decode reads a scene description from r
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &f, nil
}

// Encode writes f as YAML to w
func Encode(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	return enc.Close()
}

// Read reads a scene description from a YAML file
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Write writes a scene description to a YAML file
func Write(f *File, path string) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
