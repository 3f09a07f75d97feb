package scenario

import (
	"testing"

	"github.com/chaosbench/chaosbench/pkg/value"
	"github.com/stretchr/testify/assert"
)

func TestTaskRetriesDefaultsWhenAbsent(t *testing.T) {
	s := Scenario{}
	assert.Equal(t, uint32(DefaultTaskRetries), s.TaskRetries())
}

func TestTaskRetriesFromGlobalParameters(t *testing.T) {
	g := value.NewMap()
	g.Set(TaskRetriesParam, value.Uint(3))
	s := Scenario{Parameters: Overlay{Global: g}}
	assert.Equal(t, uint32(3), s.TaskRetries())
}

func TestRemoteServerAbsentByDefault(t *testing.T) {
	s := Scenario{}
	_, ok := s.RemoteServer()
	assert.False(t, ok)
}

func TestOverlayMaterialiseMergesOSOverride(t *testing.T) {
	g := value.NewMap()
	g.Set("a", value.Text("global"))
	win := value.NewMap()
	win.Set("a", value.Text("windows"))

	o := Overlay{Global: g, Windows: win}
	merged := o.Materialise(OSWindows)
	got, ok := merged.Get("a")
	assert.True(t, ok)
	s, _ := got.TryString()
	assert.Equal(t, "windows", s)

	merged = o.Materialise(OSLinux)
	got, _ = merged.Get("a")
	s, _ = got.TryString()
	assert.Equal(t, "global", s)
}
