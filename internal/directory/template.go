package directory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/camwall/internal/video"
)

// Env carries the per-request values a template can reference.
type Env struct {
	Subnet     string            // subnet of this node, matched against Template.Subnets
	Properties map[string]string // directory properties overlaid with request properties
	Size       video.Size
	User       string
	SessionID  int64
}

// MissingFieldError reports a template field that has no value for a camera.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("no value for {%s}", e.Field)
}

// Expand replaces every {field} in t.Config with its value for cam.
// Field names are matched case-insensitively. An unterminated brace is
// copied as is.
func Expand(t Template, cam Camera, env Env) (string, error) {
	var b strings.Builder
	cfg := t.Config
	for {
		open := strings.IndexByte(cfg, '{')
		if open < 0 {
			b.WriteString(cfg)
			break
		}
		end := strings.IndexByte(cfg[open:], '}')
		if end < 0 {
			b.WriteString(cfg)
			break
		}
		end += open

		b.WriteString(cfg[:open])
		field := strings.ToLower(strings.TrimSpace(cfg[open+1 : end]))
		v, ok := fieldValue(field, t, cam, env)
		if !ok || v == "" {
			return "", &MissingFieldError{Field: field}
		}
		b.WriteString(v)
		cfg = cfg[end+1:]
	}
	return b.String(), nil
}

func fieldValue(field string, t Template, cam Camera, env Env) (string, bool) {
	switch field {
	case "addr":
		return cam.Address, cam.Address != ""
	case "port":
		return port(t, cam)
	case "addrport":
		if cam.Address == "" {
			return "", false
		}
		if p, ok := port(t, cam); ok {
			return cam.Address + ":" + p, true
		}
		return cam.Address, true
	case "maddr":
		addr, _ := multicast(t, cam)
		return addr, addr != ""
	case "mport":
		_, p := multicast(t, cam)
		return p, p != ""
	case "maddrport":
		addr, p := multicast(t, cam)
		if addr == "" || p == "" {
			return addr, addr != ""
		}
		return addr + ":" + p, true
	case "chan":
		if cam.Channel <= 0 {
			return "", false
		}
		return strconv.Itoa(cam.Channel), true
	case "name":
		return cam.DisplayName(), true
	case "pname":
		return PathName(cam.DisplayName()), true
	case "dist":
		return lookup(env.Properties, "district")
	case "session-id":
		if env.SessionID == 0 {
			return "", false
		}
		return strconv.FormatInt(env.SessionID, 10), true
	case "user":
		return env.User, env.User != ""
	case "sizecode":
		return env.Size.Code(), true
	default:
		return lookup(env.Properties, field)
	}
}

func port(t Template, cam Camera) (string, bool) {
	switch {
	case cam.Port > 0:
		return strconv.Itoa(cam.Port), true
	case t.DefaultPort > 0:
		return strconv.Itoa(t.DefaultPort), true
	}
	return "", false
}

// multicast splits the camera's multicast address, falling back to the
// template's default port when the address has none.
func multicast(t Template, cam Camera) (addr, port string) {
	addr, port = splitMulticast(cam.Multicast)
	if port == "" && addr != "" && t.DefaultPort > 0 {
		port = strconv.Itoa(t.DefaultPort)
	}
	return addr, port
}

func splitMulticast(m string) (addr, port string) {
	if i := strings.LastIndexByte(m, ':'); i >= 0 {
		return m[:i], m[i+1:]
	}
	return m, ""
}

func lookup(props map[string]string, key string) (string, bool) {
	for k, v := range props {
		if strings.EqualFold(k, key) {
			return v, v != ""
		}
	}
	return "", false
}

// PathName makes name safe for a URL path segment: anything outside
// letters, digits and ".-_~" becomes "_".
func PathName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_', r == '~':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// MatchesSubnet reports whether t may be used from subnet. A template with
// no subnet list matches everywhere.
func (t Template) MatchesSubnet(subnet string) bool {
	empty := true
	for _, s := range strings.FieldsFunc(t.Subnets, func(r rune) bool { return r == ',' || r == ';' }) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.EqualFold(s, subnet) {
			return true
		}
		empty = false
	}
	return empty
}

// Candidate is one template tried for a camera.
type Candidate struct {
	Template string `json:"template"`
	Label    string `json:"label,omitempty"`
	Source   string `json:"source,omitempty"`
	Accepted bool   `json:"accepted"`
	Skipped  string `json:"skipped,omitempty"` // why the candidate cannot be used
}

// Candidates expands every template of the camera's encoder in order.
// accepts is the active transport's check; nil accepts everything.
func (d *Directory) Candidates(cam Camera, env Env, accepts func(string) bool) []Candidate {
	enc, ok := d.Encoders[cam.Encoder]
	if !ok {
		return nil
	}
	if env.Subnet == "" {
		env.Subnet = d.Subnet
	}

	out := make([]Candidate, 0, len(enc.Templates))
	for _, name := range enc.Templates {
		t := d.Templates[name]
		c := Candidate{Template: name, Label: t.Label}
		switch src, err := Expand(t, cam, env); {
		case !t.MatchesSubnet(env.Subnet):
			c.Skipped = fmt.Sprintf("not available from subnet %q", env.Subnet)
		case err != nil:
			c.Skipped = err.Error()
		default:
			c.Source = src
			if accepts == nil || accepts(src) {
				c.Accepted = true
			} else {
				c.Skipped = "transport cannot play this source"
			}
		}
		out = append(out, c)
	}
	return out
}
