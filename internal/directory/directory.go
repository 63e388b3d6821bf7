// Package directory holds the camera directory: cameras, the encoder types
// they use, and the source templates that turn a camera into a stream
// source for the active transport.
package directory

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Template is a stream source template. Config holds replacement fields
// such as {addrport} that are expanded per camera.
type Template struct {
	Name        string `toml:"-" json:"name"`
	Label       string `toml:"label" json:"label"`
	Config      string `toml:"config" json:"config"`
	DefaultPort int    `toml:"default_port,omitempty" json:"default_port,omitempty"`
	Subnets     string `toml:"subnets,omitempty" json:"subnets,omitempty"` // comma or semicolon separated, empty matches any
}

// Encoder is an encoder type: the ordered list of templates tried for
// every camera that uses it.
type Encoder struct {
	Name      string   `toml:"-" json:"name"`
	Templates []string `toml:"templates" json:"templates"`
}

// Camera is one camera in the directory.
type Camera struct {
	ID        string `toml:"-" json:"id"`
	Name      string `toml:"name,omitempty" json:"name"`
	Encoder   string `toml:"encoder" json:"encoder"`
	Address   string `toml:"address,omitempty" json:"address,omitempty"`
	Port      int    `toml:"port,omitempty" json:"port,omitempty"`
	Multicast string `toml:"multicast,omitempty" json:"multicast,omitempty"` // "addr[:port]"
	Channel   int    `toml:"channel,omitempty" json:"channel,omitempty"`

	// PTZ endpoint (ONVIF device service address) and credentials.
	PTZ      string `toml:"ptz,omitempty" json:"ptz,omitempty"`
	Username string `toml:"username,omitempty" json:"-"`
	Password string `toml:"password,omitempty" json:"-"`
}

// DisplayName returns Name, or the id when no name is set.
func (c Camera) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Directory is the parsed directory file.
type Directory struct {
	Version    int                 `toml:"version"`
	Subnet     string              `toml:"subnet,omitempty"` // subnet this node sits on
	Properties map[string]string   `toml:"properties,omitempty"`
	Templates  map[string]Template `toml:"templates"`
	Encoders   map[string]Encoder  `toml:"encoders"`
	Cameras    map[string]Camera   `toml:"cameras"`

	ordered []Camera
}

// Load reads and parses a directory file.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera directory: %w", err)
	}
	return Parse(data)
}

// Parse parses directory TOML and checks its references.
func Parse(data []byte) (*Directory, error) {
	d := &Directory{}
	if err := toml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse camera directory: %w", err)
	}
	if d.Version == 0 {
		d.Version = 1
	}
	if err := d.index(); err != nil {
		return nil, err
	}
	return d, nil
}

// index fills the names from map keys, validates references and sorts the
// cameras.
func (d *Directory) index() error {
	var errs []error

	for name, t := range d.Templates {
		t.Name = name
		if strings.TrimSpace(t.Config) == "" {
			errs = append(errs, fmt.Errorf("template %s: config is empty", name))
		}
		d.Templates[name] = t
	}
	for name, e := range d.Encoders {
		e.Name = name
		for _, tn := range e.Templates {
			if _, ok := d.Templates[tn]; !ok {
				errs = append(errs, fmt.Errorf("encoder %s: unknown template %q", name, tn))
			}
		}
		d.Encoders[name] = e
	}

	d.ordered = d.ordered[:0]
	for id, c := range d.Cameras {
		c.ID = id
		if _, ok := d.Encoders[c.Encoder]; !ok {
			errs = append(errs, fmt.Errorf("camera %s: unknown encoder %q", id, c.Encoder))
		}
		d.Cameras[id] = c
		d.ordered = append(d.ordered, c)
	}
	slices.SortFunc(d.ordered, func(a, b Camera) int { return CompareIDs(a.ID, b.ID) })

	return errors.Join(errs...)
}

// Camera looks up a camera by id.
func (d *Directory) Camera(id string) (Camera, bool) {
	c, ok := d.Cameras[id]
	return c, ok
}

// Ordered returns the cameras in selection order.
func (d *Directory) Ordered() []Camera {
	return slices.Clone(d.ordered)
}

// Next returns the camera after id, wrapping to the first. An unknown id
// selects the first camera.
func (d *Directory) Next(id string) (Camera, bool) {
	return d.step(id, 1)
}

// Previous returns the camera before id, wrapping to the last. An unknown
// id selects the last camera.
func (d *Directory) Previous(id string) (Camera, bool) {
	return d.step(id, -1)
}

func (d *Directory) step(id string, dir int) (Camera, bool) {
	n := len(d.ordered)
	if n == 0 {
		return Camera{}, false
	}
	i := slices.IndexFunc(d.ordered, func(c Camera) bool { return c.ID == id })
	if i < 0 {
		if dir > 0 {
			return d.ordered[0], true
		}
		return d.ordered[n-1], true
	}
	return d.ordered[(i+dir+n)%n], true
}

// CompareIDs orders camera ids by their first run of digits, then by the
// full string. Ids without digits sort after numbered ones.
func CompareIDs(a, b string) int {
	na, oka := idNumber(a)
	nb, okb := idNumber(b)
	switch {
	case oka && okb:
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
	case oka:
		return -1
	case okb:
		return 1
	}
	return strings.Compare(a, b)
}

func idNumber(id string) (uint64, bool) {
	start := strings.IndexFunc(id, isDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(id) && isDigit(rune(id[end])) {
		end++
	}
	n, err := strconv.ParseUint(id[start:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
