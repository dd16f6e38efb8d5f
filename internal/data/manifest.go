package data

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/framecore/framecore/internal/scene"
	"gopkg.in/yaml.v3"
)

// ScriptEntry attaches one scripted component to a node.
type ScriptEntry struct {
	Name  string         `yaml:"name"`
	Props map[string]any `yaml:"props"`
}

// NodeEntry describes one scene node. Parents must appear before their
// children.
type NodeEntry struct {
	Name     string        `yaml:"name"`
	Parent   string        `yaml:"parent"`
	X        float32       `yaml:"x"`
	Y        float32       `yaml:"y"`
	Rotation float32       `yaml:"rotation"`
	Scale    *float32      `yaml:"scale"` // nil means 1
	Glyph    string        `yaml:"glyph"`
	Color    string        `yaml:"color"` // "#rrggbb"
	Hidden   bool          `yaml:"hidden"`
	Scripts  []ScriptEntry `yaml:"scripts"`
}

// Manifest is the YAML description of a scene.
type Manifest struct {
	Camera string      `yaml:"camera"`
	Nodes  []NodeEntry `yaml:"nodes"`
}

// ComponentFactory creates the component for a script entry.
type ComponentFactory func(script string, props map[string]any) (lifecycle.Component, error)

// LoadManifest loads and validates a scene manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene manifest: %w", err)
	}
	return ParseManifest(raw)
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse scene manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[string]bool, len(m.Nodes))
	for i, n := range m.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node %d: missing name", i)
		}
		if seen[n.Name] {
			return fmt.Errorf("node %q: duplicate name", n.Name)
		}
		if n.Parent != "" && !seen[n.Parent] {
			return fmt.Errorf("node %q: parent %q not defined before it", n.Name, n.Parent)
		}
		if n.Glyph != "" && utf8.RuneCountInString(n.Glyph) != 1 {
			return fmt.Errorf("node %q: glyph %q must be one character", n.Name, n.Glyph)
		}
		if _, err := parseColor(n.Color); err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
		for _, s := range n.Scripts {
			if s.Name == "" {
				return fmt.Errorf("node %q: script without name", n.Name)
			}
		}
		seen[n.Name] = true
	}
	if m.Camera != "" && !seen[m.Camera] {
		return fmt.Errorf("camera %q is not a node", m.Camera)
	}
	return nil
}

// parseColor accepts "#rrggbb", "rrggbb" or "". Zero means the terminal
// default.
func parseColor(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil || v > 0xFFFFFF {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	return uint32(v), nil
}

// Build creates the manifest's nodes in g and attaches their scripts, which
// registers them with whatever g is bound to. It returns the camera node, or
// nil when none is named.
func (m *Manifest) Build(g *scene.Graph, newComponent ComponentFactory) (*scene.Node, error) {
	nodes := make(map[string]*scene.Node, len(m.Nodes))
	for _, e := range m.Nodes {
		n := g.NewNode(e.Name, nodes[e.Parent])
		n.Transform = scene.Transform{X: e.X, Y: e.Y, Rotation: e.Rotation, Scale: 1}
		if e.Scale != nil {
			n.Transform.Scale = *e.Scale
		}
		if e.Glyph != "" {
			n.Glyph, _ = utf8.DecodeRuneInString(e.Glyph)
		}
		n.Color, _ = parseColor(e.Color)
		n.Visible = !e.Hidden
		nodes[e.Name] = n
	}

	// scripts attach once every node exists so awake hooks can see the
	// whole scene
	for _, e := range m.Nodes {
		n := nodes[e.Name]
		for _, s := range e.Scripts {
			c, err := newComponent(s.Name, s.Props)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", e.Name, err)
			}
			if err := n.AddComponent(c); err != nil {
				return nil, fmt.Errorf("node %q: %w", e.Name, err)
			}
		}
	}
	return nodes[m.Camera], nil
}
