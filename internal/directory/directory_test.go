package directory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/camwall/internal/events"
	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/video"
	"github.com/stretchr/testify/require"
)

const testDirectory = `
version = 1
subnet = "ops"

[properties]
district = "d4"
server = "media.example"

[templates.multicast]
label = "Multicast RTSP"
config = "rtsp://{maddrport}/ch{chan}"
subnets = "ops; field"

[templates.direct]
label = "Direct MJPEG"
config = "http://{addrport}/mjpg/{pname}?res={sizecode}&dist={dist}"
default_port = 8080

[templates.relay]
label = "Relay"
config = "http://{server}/{name}?session={session-id}"

[encoders.axis]
templates = ["multicast", "direct", "relay"]

[encoders.relay-only]
templates = ["relay"]

[cameras.CAM-101]
name = "I-5 @ Main St"
encoder = "axis"
address = "10.0.0.5"
multicast = "239.1.1.5:5004"
channel = 2

[cameras.CAM-202]
encoder = "axis"
address = "10.0.0.6"
port = 81

[cameras.CAM-9]
encoder = "relay-only"

[cameras.LOBBY]
encoder = "relay-only"
`

func parseTest(t *testing.T) *Directory {
	t.Helper()
	d, err := Parse([]byte(testDirectory))
	require.NoError(t, err)
	return d
}

func TestParse_FillsNamesAndOrders(t *testing.T) {
	d := parseTest(t)

	require.Equal(t, "axis", d.Encoders["axis"].Name)
	require.Equal(t, "direct", d.Templates["direct"].Name)

	cam, ok := d.Camera("CAM-101")
	require.True(t, ok)
	require.Equal(t, "CAM-101", cam.ID)

	var ids []string
	for _, c := range d.Ordered() {
		ids = append(ids, c.ID)
	}
	require.Equal(t, []string{"CAM-9", "CAM-101", "CAM-202", "LOBBY"}, ids)
}

func TestParse_BadReferences(t *testing.T) {
	_, err := Parse([]byte(`
[templates.empty]
config = " "

[encoders.e]
templates = ["missing"]

[cameras.C1]
encoder = "nope"
`))
	require.Error(t, err)
	require.ErrorContains(t, err, "template empty: config is empty")
	require.ErrorContains(t, err, `encoder e: unknown template "missing"`)
	require.ErrorContains(t, err, `camera C1: unknown encoder "nope"`)

	_, err = Parse([]byte("cameras = ["))
	require.ErrorContains(t, err, "failed to parse camera directory")
}

func TestCompareIDs(t *testing.T) {
	require.Negative(t, CompareIDs("CAM-9", "CAM-10"))
	require.Negative(t, CompareIDs("A7", "B7"))
	require.Negative(t, CompareIDs("CAM-1", "LOBBY"))
	require.Positive(t, CompareIDs("LOBBY", "CAM-1"))
	require.Zero(t, CompareIDs("X", "X"))
}

func TestNextPreviousWrap(t *testing.T) {
	d := parseTest(t)

	next, ok := d.Next("LOBBY")
	require.True(t, ok)
	require.Equal(t, "CAM-9", next.ID)

	prev, _ := d.Previous("CAM-9")
	require.Equal(t, "LOBBY", prev.ID)

	next, _ = d.Next("CAM-101")
	require.Equal(t, "CAM-202", next.ID)

	first, _ := d.Next("unknown")
	require.Equal(t, "CAM-9", first.ID)
	last, _ := d.Previous("unknown")
	require.Equal(t, "LOBBY", last.ID)

	_, ok = (&Directory{}).Next("x")
	require.False(t, ok)
}

func TestExpand(t *testing.T) {
	d := parseTest(t)
	cam, _ := d.Camera("CAM-101")
	env := Env{Properties: d.Properties, Size: video.SizeLarge}

	got, err := Expand(d.Templates["direct"], cam, env)
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.5:8080/mjpg/I-5___Main_St?res=l&dist=d4", got)

	got, err = Expand(d.Templates["multicast"], cam, env)
	require.NoError(t, err)
	require.Equal(t, "rtsp://239.1.1.5:5004/ch2", got)

	got, err = Expand(Template{Config: "{MADDR}|{mport}|{ Port }|{ADDR}", DefaultPort: 554}, cam, env)
	require.NoError(t, err)
	require.Equal(t, "239.1.1.5|5004|554|10.0.0.5", got)
}

func TestExpand_MulticastDefaultPort(t *testing.T) {
	cam := Camera{Multicast: "239.1.1.1"}

	got, err := Expand(Template{Config: "udp://{maddr}:{mport}", DefaultPort: 5000}, cam, Env{})
	require.NoError(t, err)
	require.Equal(t, "udp://239.1.1.1:5000", got)

	got, err = Expand(Template{Config: "udp://{maddrport}", DefaultPort: 5000}, cam, Env{})
	require.NoError(t, err)
	require.Equal(t, "udp://239.1.1.1:5000", got)

	got, err = Expand(Template{Config: "udp://{maddrport}", DefaultPort: 5000}, Camera{Multicast: "239.1.1.1:6000"}, Env{})
	require.NoError(t, err)
	require.Equal(t, "udp://239.1.1.1:6000", got, "an explicit port wins")

	got, err = Expand(Template{Config: "udp://{maddrport}"}, cam, Env{})
	require.NoError(t, err)
	require.Equal(t, "udp://239.1.1.1", got)

	_, err = Expand(Template{Config: "udp://{maddr}:{mport}"}, cam, Env{})
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "mport", missing.Field)
}

func TestExpand_MissingField(t *testing.T) {
	d := parseTest(t)
	cam, _ := d.Camera("CAM-202")

	_, err := Expand(d.Templates["multicast"], cam, Env{})
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "maddrport", missing.Field)

	_, err = Expand(d.Templates["relay"], cam, Env{Properties: d.Properties})
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "session-id", missing.Field)
}

func TestExpand_Unterminated(t *testing.T) {
	got, err := Expand(Template{Config: "http://{addr}/x{y"}, Camera{Address: "h"}, Env{})
	require.NoError(t, err)
	require.Equal(t, "http://h/x{y", got)
}

func TestPathName(t *testing.T) {
	require.Equal(t, "I-5___Main_St", PathName("I-5 @ Main St"))
	require.Equal(t, "a.b~c_d", PathName("a.b~c_d"))
	require.Equal(t, "caf_", PathName("café"))
}

func TestMatchesSubnet(t *testing.T) {
	require.True(t, Template{}.MatchesSubnet("ops"))
	require.True(t, Template{Subnets: " ; , "}.MatchesSubnet("ops"))
	require.True(t, Template{Subnets: "field, OPS"}.MatchesSubnet("ops"))
	require.False(t, Template{Subnets: "field;lab"}.MatchesSubnet("ops"))
}

func TestCandidates(t *testing.T) {
	d := parseTest(t)
	cam, _ := d.Camera("CAM-202")
	httpOnly := func(s string) bool { return strings.HasPrefix(s, "http://") }

	got := d.Candidates(cam, Env{Properties: d.Properties, SessionID: 77}, httpOnly)
	require.Len(t, got, 3)

	require.False(t, got[0].Accepted)
	require.Equal(t, "no value for {maddrport}", got[0].Skipped)

	require.True(t, got[1].Accepted)
	require.Equal(t, "http://10.0.0.6:81/mjpg/CAM-202?res=m&dist=d4", got[1].Source)

	require.True(t, got[2].Accepted)
	require.Equal(t, "http://media.example/CAM-202?session=77", got[2].Source)

	got = d.Candidates(cam, Env{Subnet: "lab", Properties: d.Properties}, nil)
	require.Contains(t, got[0].Skipped, "subnet")
}

func newTestStore(t *testing.T, bus *events.Bus) *Store {
	t.Helper()
	return NewStore(parseTest(t), StoreOptions{Bus: bus, Logger: logging.Discard()})
}

func TestStore_Resolve(t *testing.T) {
	s := newTestStore(t, nil)
	rtspOnly := func(src string) bool { return strings.HasPrefix(src, "rtsp://") }
	all := func(string) bool { return true }

	src, err := s.Resolve(context.Background(), video.NewRequest("CAM-101"), rtspOnly)
	require.NoError(t, err)
	require.Equal(t, "rtsp://239.1.1.5:5004/ch2", src)

	src, err = s.Resolve(context.Background(), video.NewRequest("CAM-9", video.WithAuth(video.Auth{SessionID: 5})), all)
	require.NoError(t, err)
	require.Equal(t, "http://media.example/CAM-9?session=5", src)

	_, err = s.Resolve(context.Background(), video.NewRequest("CAM-404"), all)
	require.ErrorIs(t, err, &video.Error{Code: video.CodeTransport, Message: video.ReasonUnknownCamera})

	_, err = s.Resolve(context.Background(), video.NewRequest("CAM-202"), rtspOnly)
	require.ErrorIs(t, err, &video.Error{Code: video.CodeTransport, Message: ReasonNoSource})
}

func TestStore_RequestPropertiesOverride(t *testing.T) {
	s := newTestStore(t, nil)
	src, err := s.Resolve(context.Background(),
		video.NewRequest("CAM-9", video.WithProperty("server", "edge.local"), video.WithAuth(video.Auth{SessionID: 1})),
		func(string) bool { return true })
	require.NoError(t, err)
	require.Equal(t, "http://edge.local/CAM-9?session=1", src)
}

func TestStore_ConfiguredSubnetWins(t *testing.T) {
	s := NewStore(parseTest(t), StoreOptions{Subnet: "lab", Logger: logging.Discard()})
	src, err := s.Resolve(context.Background(), video.NewRequest("CAM-101"), func(string) bool { return true })
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(src, "http://10.0.0.5:8080/"), src)
}

func TestStore_Selector(t *testing.T) {
	s := newTestStore(t, nil)
	id, ok := s.Next("CAM-202")
	require.True(t, ok)
	require.Equal(t, "LOBBY", id)
	id, _ = s.Previous("CAM-101")
	require.Equal(t, "CAM-9", id)
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "absent.toml"), StoreOptions{Logger: logging.Discard()})
	require.NoError(t, err)
	require.Empty(t, s.Cameras())
}

func TestStore_ReloadPublishes(t *testing.T) {
	bus := events.New()
	got := make(chan events.DirectoryReloadedEvent, 1)
	defer bus.Subscribe(func(e events.DirectoryReloadedEvent) { got <- e })()

	path := filepath.Join(t.TempDir(), "cameras.toml")
	require.NoError(t, os.WriteFile(path, []byte(testDirectory), 0o644))

	s := NewStore(nil, StoreOptions{Bus: bus, Logger: logging.Discard()})
	require.NoError(t, s.Reload(path))
	require.Len(t, s.Cameras(), 4)

	select {
	case e := <-got:
		require.Equal(t, 4, e.Cameras)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event")
	}

	require.NoError(t, os.WriteFile(path, []byte("cameras = ["), 0o644))
	require.Error(t, s.Reload(path))
	require.Len(t, s.Cameras(), 4)
}
