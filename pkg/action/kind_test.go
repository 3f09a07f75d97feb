package action

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIsTotal(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"Package::Install", PackageInstall},
		{"Log::Watch", LogWatch},
		{"Http::Request", HttpRequest},
		{"RestartHost", RestartHost},
		{"Wait", Wait},
		{"Null", Null},
		{"SomethingUnknown", Custom("SomethingUnknown")},
		{"", Null},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestKindJSONRoundTrip(t *testing.T) {
	for _, k := range append(allKnown, Custom("my-custom-action")) {
		data, err := json.Marshal(k)
		require.NoError(t, err)

		var got Kind
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, k, got, "round-trip mismatch for %s", k.String())
	}
}

func TestIsServerSide(t *testing.T) {
	assert.True(t, ExecuteServerCommand.IsServerSide())
	assert.True(t, ExecuteServerScript.IsServerSide())
	assert.True(t, HttpRequest.IsServerSide())
	assert.True(t, HttpResponse.IsServerSide())
	assert.True(t, HttpHook.IsServerSide())
	assert.False(t, ExecuteCommand.IsServerSide())
	assert.False(t, PackageInstall.IsServerSide())
}

func TestIsUndoable(t *testing.T) {
	assert.True(t, DnsAdd.IsUndoable())
	assert.True(t, PackageInstall.IsUndoable())
	assert.True(t, LogWatch.IsUndoable())
	assert.True(t, MetricsStartProcess.IsUndoable())
	assert.True(t, MetricsStartService.IsUndoable())
	assert.False(t, MetricsStopProcess.IsUndoable())
	assert.False(t, PackageUninstall.IsUndoable())
}

func TestIsWaitResolvesCustomActions(t *testing.T) {
	actions := []CustomAction{
		{Name: "my-wait", Action: Wait},
		{Name: "my-install", Action: PackageInstall},
	}
	assert.True(t, IsWait(Wait, actions))
	assert.True(t, IsWait(Custom("my-wait"), actions))
	assert.False(t, IsWait(Custom("my-install"), actions))
	assert.False(t, IsWait(Custom("unknown"), actions))
}
