package loader

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"testing"
	"time"
)

const tagSet = `
version: "2023-11-02.1"
devices:
  - id: sim
    protocol: simulator
    simulator:
      seed: 42
  - id: plc
    protocol: modbusTcp
    timeout: 500
    modbus:
      slave: 1
      memoryLayout: CDAB
      address:
        location: 10.0.0.5
tags:
  - id: flow
    name: Line1.Flow
    tagType: input
    deviceId: sim
    address: "sine:30"
    rawMin: 0
    rawMax: 100
    scaledMin: 0
    scaledMax: 10
    deadband: 0.5
    engineeringUnit: m3/h
  - name: Line1.Mode
    tagType: virtual
    dataType: string
    initialValue: auto
  - id: cmd
    name: Line1.Cmd
    tagType: input
    dataAccess: rw
    dataType: boolean
    deviceId: plc
    address: "00001"
    scanRate: 250
    isEnabled: false
  - id: orphan
    name: Line1.Orphan
    tagType: input
    deviceId: nowhere
    address: random
  - id: badname
    name: "bad name!"
    tagType: calculated
  - id: flow2
    name: Line1.Flow
    tagType: input
    deviceId: sim
    address: random
  - name: ""
    tagType: bogus
`

func TestBuild(t *testing.T) {
	set, err := Parse([]byte(tagSet))
	require.NoError(t, err)
	now := time.Date(2023, 11, 2, 8, 0, 0, 0, time.UTC)

	result, err := Build(set, now)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-02.1", result.Version)
	assert.Len(t, result.Devices, 2)

	tags := make(map[string]*runtime.Tag)
	for _, tag := range result.Tags {
		tags[tag.Name] = tag
	}
	require.Len(t, tags, 3)

	flow := tags["Line1.Flow"]
	require.NotNil(t, flow)
	assert.Equal(t, "flow", flow.ID)
	assert.Equal(t, constant.Input, flow.TagType)
	assert.Equal(t, constant.ReadOnly, flow.DataAccess)
	assert.Equal(t, constant.Double, flow.DataType)
	assert.Equal(t, runtime.DefaultScanRate, flow.ScanRate)
	assert.Equal(t, runtime.DefaultDecimalPlaces, flow.DecimalPlaces)
	assert.True(t, flow.IsEnabled)
	assert.True(t, flow.HasScaling())
	assert.Equal(t, 0.5, flow.Deadband)
	assert.Equal(t, now, flow.UpdatedAt)
	assert.Equal(t, constant.Bad, flow.Quality)

	mode := tags["Line1.Mode"]
	require.NotNil(t, mode)
	assert.NotEmpty(t, mode.ID)
	assert.Equal(t, constant.ReadWrite, mode.DataAccess)
	assert.Equal(t, "auto", mode.CurrentValue.String())

	cmd := tags["Line1.Cmd"]
	require.NotNil(t, cmd)
	assert.Equal(t, constant.ReadWrite, cmd.DataAccess)
	assert.Equal(t, 250, cmd.ScanRate)
	assert.False(t, cmd.IsEnabled)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "cmd", result.Warnings[0].TagID)

	assert.Len(t, result.Rejected, 4)
	for _, key := range []string{"orphan", "badname", "flow2", "tags[6]"} {
		err, ok := result.Rejected[key]
		require.True(t, ok, key)
		assert.True(t, runtime.IsConfigurationError(err), key)
	}
	assert.Contains(t, result.Rejected["orphan"].Error(), "nowhere")
	assert.Error(t, result.RejectedError())
}

func TestBuildArchived(t *testing.T) {
	set, err := Parse([]byte(`
version: "1"
tags:
  - id: old
    name: Old
    tagType: virtual
    createdAt: "2020-01-01T00:00:00Z"
    archivedAt: "2021-01-01T00:00:00Z"
`))
	require.NoError(t, err)
	result, err := Build(set, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Tags, 1)
	old := result.Tags[0]
	assert.True(t, old.IsArchived())
	assert.Equal(t, 2020, old.CreatedAt.Year())
	assert.False(t, old.IsScannable())
	assert.NoError(t, result.RejectedError())
}

func TestBuildRejectsSet(t *testing.T) {
	tests := map[string]string{
		"missing version": `
devices: []
`,
		"unsupported protocol": `
version: "1"
devices:
  - id: d1
    protocol: bacnet
`,
		"modbus without location": `
version: "1"
devices:
  - id: d1
    protocol: modbusTcp
`,
		"unknown memory layout": `
version: "1"
devices:
  - id: d1
    protocol: modbusRtu
    modbus:
      memoryLayout: ACBD
      address:
        location: /dev/ttyUSB0
`,
		"duplicate device": `
version: "1"
devices:
  - id: d1
    protocol: simulator
  - id: d1
    protocol: simulator
`,
		"opcua without endpoint": `
version: "1"
devices:
  - id: d1
    protocol: opcUa
`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			set, err := Parse([]byte(data))
			require.NoError(t, err)
			_, err = Build(set, time.Now())
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
version: "1"
tags:
  - name: a
    tagType: virtual
    scanRateMs: 100
`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tagSet), 0o644))

	result, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, result.Tags, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
