package main

import (
	"io"
	"testing"

	"github.com/lesismal/memreg"
	"github.com/lesismal/memreg/environment"
	"github.com/lesismal/memreg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoot(t *testing.T) {
	conf := memreg.DefaultConfig()
	conf.Logger = logging.NewLogger(io.Discard, "")
	conf.Remappings = map[string]string{"legacy": "system"}
	mod := memreg.NewModule("boot", conf)

	mgr := boot(mod)
	defer environment.Destroy()
	defer mod.Destroy()

	require.True(t, mod.IsReady())
	assert.True(t, mgr.IsFinalized())
	names := []string{}
	for _, r := range mgr.Allocators() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"bootstrap", "system", "aligned", "std"}, names)

	legacy, ok := mgr.Lookup("legacy")
	require.True(t, ok)
	system, _ := mgr.Lookup("system")
	assert.Same(t, system, legacy)

	data, err := mgr.DumpJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "bootstrap"`)
	assert.Contains(t, string(data), `"capacity": 16384`)
}
