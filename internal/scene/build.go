package scene

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scene2video/internal/anim"
	"github.com/ivlev/scene2video/internal/easing"
)

// TextureLoader resolves the texture references of draw nodes
type TextureLoader interface {
	LoadTexture(ref string) (image.Image, error)
}

// maxTextureLoads bounds concurrent texture loading during Build
const maxTextureLoads = 4

// Build turns a scene description into a validated scene. Textures are
// loaded concurrently; loader may be nil when no draw uses a texture.
func Build(spec *File, loader TextureLoader) (*Scene, error) {
	if spec == nil {
		return nil, errors.New("nil scene description")
	}
	b := &builder{sources: map[string]anim.Source{}}

	if err := b.tracks(spec); err != nil {
		return nil, fmt.Errorf("scene %s: %w", spec.Name, err)
	}
	if err := b.velocities(spec); err != nil {
		return nil, fmt.Errorf("scene %s: %w", spec.Name, err)
	}
	textures, err := loadTextures(&spec.Root, loader)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", spec.Name, err)
	}
	b.textures = textures

	root, err := b.node(&spec.Root, "root")
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", spec.Name, err)
	}

	if len(spec.AspectRatio) != 2 {
		return nil, fmt.Errorf("scene %s: aspect_ratio needs 2 values, got %d", spec.Name, len(spec.AspectRatio))
	}
	s := &Scene{
		Name:        spec.Name,
		Duration:    spec.Duration,
		AspectRatio: [2]int{spec.AspectRatio[0], spec.AspectRatio[1]},
		ClearColor:  mgl32.Vec4{0, 0, 0, 1},
		Root:        root,
		Sources:     b.sources,
	}
	if len(spec.ClearColor) > 0 {
		c, err := anim.FromComponents(anim.KindColor, spec.ClearColor)
		if err != nil {
			return nil, fmt.Errorf("scene %s: clear_color: %w", spec.Name, err)
		}
		s.ClearColor = vec4f(c.Color())
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

type builder struct {
	sources  map[string]anim.Source
	textures map[string]image.Image
}

func (b *builder) tracks(spec *File) error {
	for _, name := range sortedKeys(spec.Tracks) {
		if !plainName(name) {
			return fmt.Errorf("track %q: name reads as a constant in bindings", name)
		}
		ts := spec.Tracks[name]
		kind, err := anim.ParseKind(ts.Kind)
		if err != nil {
			return fmt.Errorf("track %s: %w", name, err)
		}
		kfs := make([]anim.Keyframe, len(ts.Keyframes))
		for i, ks := range ts.Keyframes {
			if kfs[i], err = keyframe(kind, ks); err != nil {
				return fmt.Errorf("track %s: keyframe %d: %w", name, i, err)
			}
		}
		track, err := anim.BuildTrack(kfs)
		if err != nil {
			return fmt.Errorf("track %s: %w", name, err)
		}
		b.sources[name] = track
	}
	return nil
}

func keyframe(kind anim.Kind, ks KeyframeSpec) (anim.Keyframe, error) {
	v, err := anim.FromComponents(kind, ks.Value)
	if err != nil {
		return anim.Keyframe{}, err
	}
	ek, err := easing.Parse(ks.Easing)
	if err != nil {
		return anim.Keyframe{}, err
	}
	curve := easing.Curve{Kind: ek, Args: ks.Args}
	switch len(ks.Offsets) {
	case 0:
	case 2:
		curve.Start, curve.End = ks.Offsets[0], ks.Offsets[1]
	default:
		return anim.Keyframe{}, fmt.Errorf("offsets need 2 values, got %d", len(ks.Offsets))
	}
	return anim.Keyframe{Time: ks.Time, Value: v, Easing: curve}, nil
}

func (b *builder) velocities(spec *File) error {
	for _, name := range sortedKeys(spec.Velocities) {
		ref := spec.Velocities[name]
		if !plainName(name) {
			return fmt.Errorf("velocity %q: name reads as a constant in bindings", name)
		}
		if _, dup := b.sources[name]; dup {
			return fmt.Errorf("velocity %s: name already used by a track", name)
		}
		src, ok := b.sources[ref]
		if !ok {
			return fmt.Errorf("velocity %s: unknown track %q", name, ref)
		}
		track, ok := src.(*anim.Track)
		if !ok {
			return fmt.Errorf("velocity %s: %q is not a track", name, ref)
		}
		b.sources[name] = anim.NewVelocity(track)
	}
	return nil
}

// resolve turns a binding into a source. Constants become scalars or
// vectors by length, or a buffer when hint says so.
func (b *builder) resolve(bd Binding, hint anim.Kind) (anim.Source, error) {
	if bd.Ref != "" {
		src, ok := b.sources[bd.Ref]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", bd.Ref)
		}
		return src, nil
	}
	if len(bd.Value) == 0 {
		return nil, errors.New("empty binding")
	}
	kind := hint
	if hint != anim.KindBuffer {
		switch len(bd.Value) {
		case 1:
			kind = anim.KindScalar
		case 2:
			kind = anim.KindVec2
		case 3:
			kind = anim.KindVec3
		case 4:
			kind = anim.KindVec4
		default:
			return nil, fmt.Errorf("constant with %d components", len(bd.Value))
		}
	}
	v, err := anim.FromComponents(kind, bd.Value)
	if err != nil {
		return nil, err
	}
	return anim.Constant{Value: v}, nil
}

func (b *builder) node(ns *NodeSpec, path string) (Node, error) {
	set := 0
	if ns.Group != nil {
		set++
	}
	for _, p := range []bool{ns.Draw != nil, ns.Rotate != nil, ns.Translate != nil, ns.Scale != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return nil, &PathError{Path: path, Err: fmt.Errorf("%w: node must have exactly one of group, draw, rotate, translate, scale", ErrNode)}
	}

	wrap := func(err error) error {
		if isPathed(err) {
			return err
		}
		return &PathError{Path: path, Err: err}
	}

	switch {
	case ns.Group != nil:
		g := &Group{Children: make([]Node, len(ns.Group))}
		for i := range ns.Group {
			c, err := b.node(&ns.Group[i], fmt.Sprintf("%s/%d", path, i))
			if err != nil {
				return nil, err
			}
			g.Children[i] = c
		}
		return g, nil

	case ns.Draw != nil:
		d, err := b.draw(ns.Draw)
		if err != nil {
			return nil, wrap(err)
		}
		return d, nil

	case ns.Rotate != nil:
		angle, err := b.resolve(ns.Rotate.Angle, anim.KindScalar)
		if err != nil {
			return nil, wrap(fmt.Errorf("%w: rotate angle: %v", ErrNode, err))
		}
		r := &Rotate{Angle: angle, Axis: mgl32.Vec3{0, 0, 1}}
		if len(ns.Rotate.Axis) > 0 {
			if r.Axis, err = vec3(ns.Rotate.Axis); err != nil {
				return nil, wrap(fmt.Errorf("%w: rotate axis: %v", ErrNode, err))
			}
		}
		if len(ns.Rotate.Anchor) > 0 {
			if r.Anchor, err = vec3(ns.Rotate.Anchor); err != nil {
				return nil, wrap(fmt.Errorf("%w: rotate anchor: %v", ErrNode, err))
			}
		}
		if r.Child, err = b.node(&ns.Rotate.Child, path+"/rotate"); err != nil {
			return nil, err
		}
		return r, nil

	case ns.Translate != nil:
		vector, err := b.resolve(ns.Translate.Vector, anim.KindVec3)
		if err != nil {
			return nil, wrap(fmt.Errorf("%w: translate vector: %v", ErrNode, err))
		}
		t := &Translate{Vector: vector}
		if t.Child, err = b.node(&ns.Translate.Child, path+"/translate"); err != nil {
			return nil, err
		}
		return t, nil

	default:
		factors, err := b.resolve(ns.Scale.Factors, anim.KindVec3)
		if err != nil {
			return nil, wrap(fmt.Errorf("%w: scale factors: %v", ErrNode, err))
		}
		s := &Scale{Factors: factors}
		if len(ns.Scale.Anchor) > 0 {
			if s.Anchor, err = vec3(ns.Scale.Anchor); err != nil {
				return nil, wrap(fmt.Errorf("%w: scale anchor: %v", ErrNode, err))
			}
		}
		if s.Child, err = b.node(&ns.Scale.Child, path+"/scale"); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (b *builder) draw(ds *DrawSpec) (*Draw, error) {
	prog, err := LookupProgram(ds.Program)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBinding, err)
	}
	geom, err := b.geometry(ds.Geometry)
	if err != nil {
		return nil, err
	}
	uniforms := make(map[string]anim.Source, len(ds.Uniforms))
	for _, name := range sortedKeys(ds.Uniforms) {
		src, err := b.resolve(ds.Uniforms[name], anim.KindScalar)
		if err != nil {
			return nil, fmt.Errorf("%w: uniform %s: %v", ErrBinding, name, err)
		}
		uniforms[name] = src
	}
	d := &Draw{Geometry: geom, Program: prog, Uniforms: uniforms}
	if ds.Texture != "" {
		d.Texture = b.textures[ds.Texture]
	}
	if err := d.check(); err != nil {
		return nil, err
	}
	return d, nil
}

func (b *builder) geometry(gs GeometrySpec) (Geometry, error) {
	switch gs.Type {
	case "quad":
		q := DefaultQuad()
		var err error
		for _, f := range []struct {
			dst  *mgl32.Vec3
			comp Components
		}{{&q.Corner, gs.Corner}, {&q.Width, gs.Width}, {&q.Height, gs.Height}} {
			if len(f.comp) == 0 {
				continue
			}
			if *f.dst, err = vec3(f.comp); err != nil {
				return nil, fmt.Errorf("%w: quad: %v", ErrNode, err)
			}
		}
		return q, nil

	case "triangle":
		if len(gs.Corners) != 3 {
			return nil, fmt.Errorf("%w: triangle needs 3 corners, got %d", ErrNode, len(gs.Corners))
		}
		var pts [3]mgl32.Vec3
		for i, c := range gs.Corners {
			p, err := vec3(c)
			if err != nil {
				return nil, fmt.Errorf("%w: triangle corner %d: %v", ErrNode, i, err)
			}
			pts[i] = p
		}
		return &Triangle{A: pts[0], B: pts[1], C: pts[2]}, nil

	case "circle":
		return &Circle{Radius: float32(gs.Radius), Points: gs.Points}, nil

	case "mesh":
		if gs.Vertices == nil {
			return nil, fmt.Errorf("%w: mesh without vertices", ErrNode)
		}
		src, err := b.resolve(*gs.Vertices, anim.KindBuffer)
		if err != nil {
			return nil, fmt.Errorf("%w: mesh vertices: %v", ErrNode, err)
		}
		return &Mesh{Vertices: src, Indices: gs.Indices}, nil
	}
	return nil, fmt.Errorf("%w: unknown geometry type %q", ErrNode, gs.Type)
}

// loadTextures loads every distinct texture reference under root
func loadTextures(root *NodeSpec, loader TextureLoader) (map[string]image.Image, error) {
	var refs []string
	seen := map[string]bool{}
	var collect func(ns *NodeSpec)
	collect = func(ns *NodeSpec) {
		for i := range ns.Group {
			collect(&ns.Group[i])
		}
		switch {
		case ns.Draw != nil:
			if ref := ns.Draw.Texture; ref != "" && !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		case ns.Rotate != nil:
			collect(&ns.Rotate.Child)
		case ns.Translate != nil:
			collect(&ns.Translate.Child)
		case ns.Scale != nil:
			collect(&ns.Scale.Child)
		}
	}
	collect(root)

	textures := make(map[string]image.Image, len(refs))
	if len(refs) == 0 {
		return textures, nil
	}
	if loader == nil {
		return nil, fmt.Errorf("no texture loader for %q", refs[0])
	}

	images := make([]image.Image, len(refs))
	var g errgroup.Group
	g.SetLimit(maxTextureLoads)
	for i, ref := range refs {
		g.Go(func() error {
			img, err := loader.LoadTexture(ref)
			if err != nil {
				return fmt.Errorf("texture %s: %w", ref, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, ref := range refs {
		textures[ref] = images[i]
	}
	return textures, nil
}

func vec3(c Components) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	switch len(c) {
	case 2, 3:
		for i, f := range c {
			v[i] = float32(f)
		}
		return v, nil
	}
	return v, fmt.Errorf("expected 2 or 3 components, got %d", len(c))
}

func vec4f(v [4]float64) mgl32.Vec4 {
	return mgl32.Vec4{float32(v[0]), float32(v[1]), float32(v[2]), float32(v[3])}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
