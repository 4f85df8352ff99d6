package libvirt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCapsXML = `<capabilities>
  <host>
    <uuid>2b8a4a3c-1c0e-4d6e-9f0a-5e2b7d1c9a41</uuid>
    <cpu>
      <arch>x86_64</arch>
      <model>Skylake-Server-IBRS</model>
      <vendor>Intel</vendor>
      <topology sockets='2' dies='1' cores='4' threads='2'/>
    </cpu>
  </host>
  <guest>
    <os_type>hvm</os_type>
    <arch name='x86_64'>
      <wordsize>64</wordsize>
      <emulator>/usr/libexec/qemu-kvm</emulator>
    </arch>
  </guest>
  <guest>
    <os_type>hvm</os_type>
    <arch name='i686'>
      <wordsize>32</wordsize>
      <emulator>/usr/libexec/qemu-kvm</emulator>
    </arch>
  </guest>
</capabilities>`

func TestSession_InfoNode(t *testing.T) {
	s, _ := newTestSession(t)

	info, err := s.Info(context.Background())
	require.NoError(t, err)

	n := info.Node
	assert.Equal(t, "x86_64", n.CPUModel)
	assert.Equal(t, 16, n.CPUs)
	assert.Equal(t, 2400, n.MHz)
	assert.Equal(t, 2, n.NUMANodes)
	assert.Equal(t, 2, n.Sockets)
	assert.Equal(t, 4, n.Cores)
	assert.Equal(t, 2, n.Threads)
	assert.Equal(t, uint64(32<<30), n.TotalMemoryBytes)
	assert.Equal(t, 240, n.MaxVCPUs)
	assert.Equal(t, "x86_64", n.Arch)
	assert.Equal(t, []string{"hvm/x86_64", "hvm/i686"}, n.GuestTypes)
}

func TestCString(t *testing.T) {
	assert.Equal(t, "", cString(make([]int8, 4)))
	assert.Equal(t, "ab", cString([]int8{'a', 'b', 0, 'c'}))
	assert.Equal(t, "abc", cString([]int8{'a', 'b', 'c'}))
}
