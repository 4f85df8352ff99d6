package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jbweber/virtfleet/api/v1alpha1"
	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/mirror"
)

func (s *server) listHypervisors(c *gin.Context) {
	c.JSON(http.StatusOK, s.fleet.Hypervisors())
}

func (s *server) getHypervisor(c *gin.Context) {
	hv, err := s.fleet.Hypervisor(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, hv)
}

func (s *server) listVMs(c *gin.Context) {
	var vms []*mirror.VirtualMachine
	if hostID := c.Query("hypervisor_id"); hostID != "" {
		var err error
		if vms, err = s.fleet.ListVMs(hostID); err != nil {
			abortWithError(c, err)
			return
		}
	} else {
		vms = s.fleet.AllVMs()
	}

	out := make([]*v1alpha1.VirtualMachine, 0, len(vms))
	for _, vm := range vms {
		out = append(out, v1alpha1.VirtualMachineFromMirror(vm))
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) findVM(c *gin.Context) (*mirror.VirtualMachine, bool) {
	id := c.Param("id")
	vm := s.fleet.FindVM(id)
	if vm == nil {
		abortWithError(c, fmt.Errorf("%w: %s", hypervisor.ErrVMNotFound, id))
		return nil, false
	}
	return vm, true
}

func (s *server) getVM(c *gin.Context) {
	vm, ok := s.findVM(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, v1alpha1.VirtualMachineFromMirror(vm))
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

// setTags writes the tags to the host. The cached VM changes once the host
// reports the metadata change, so the response is 202.
func (s *server) setTags(c *gin.Context) {
	var req tagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.fleet.SetTags(c.Request.Context(), c.Param("id"), req.Tags); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, req)
}

type stateRequest struct {
	State string `json:"state" binding:"required"`
}

// setState asks the host for a power state change. Like tags, the cached
// VM follows once the host emits lifecycle events.
func (s *server) setState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	action, err := hypervisor.ParsePowerAction(req.State)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.fleet.SetState(c.Request.Context(), c.Param("id"), action); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, stateRequest{State: string(action)})
}

func (s *server) getDisplay(c *gin.Context) {
	u, err := s.fleet.DisplayURL(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}

func (s *server) listPools(c *gin.Context) {
	hostID := c.Query("hypervisor_id")
	out := []*v1alpha1.StoragePool{}
	for _, p := range s.fleet.AllPools() {
		if hostID == "" || p.HostID == hostID {
			out = append(out, v1alpha1.StoragePoolFromMirror(p))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) getPool(c *gin.Context) {
	p, err := s.fleet.FindPool(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1alpha1.StoragePoolFromMirror(p))
}

// volumeResponse is a volume together with where it lives.
type volumeResponse struct {
	v1alpha1.StorageVolume
	PoolID       string `json:"poolID"`
	HypervisorID string `json:"hypervisorID"`
}

func newVolumeResponse(v mirror.StorageVolume, p *mirror.StoragePool) volumeResponse {
	return volumeResponse{
		StorageVolume: v1alpha1.StorageVolumeFromMirror(v),
		PoolID:        p.ID,
		HypervisorID:  p.HostID,
	}
}

func (s *server) listVolumes(c *gin.Context) {
	poolID := c.Query("pool_id")
	hostID := c.Query("hypervisor_id")
	out := []volumeResponse{}
	for _, p := range s.fleet.AllPools() {
		if (poolID != "" && p.ID != poolID) || (hostID != "" && p.HostID != hostID) {
			continue
		}
		for _, v := range p.Volumes {
			out = append(out, newVolumeResponse(v, p))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) getVolume(c *gin.Context) {
	v, p, err := s.fleet.FindVolume(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVolumeResponse(*v, p))
}

type captureResponse struct {
	VMID    string `json:"vm_id"`
	Display int    `json:"display"`
	Active  bool   `json:"active"`
	// Changed is false when start found the job running or stop found it
	// idle.
	Changed bool `json:"changed"`
}

func (s *server) captureKey(c *gin.Context) (*mirror.VirtualMachine, int, bool) {
	display, err := strconv.Atoi(c.Param("display"))
	if err != nil || display < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "display must be a non-negative integer"})
		return nil, 0, false
	}
	vm, ok := s.findVM(c)
	if !ok {
		return nil, 0, false
	}
	return vm, display, true
}

func (s *server) getCapture(c *gin.Context) {
	vm, display, ok := s.captureKey(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, captureResponse{VMID: vm.ID, Display: display, Active: s.captures.Active(vm.ID, display)})
}

func (s *server) startCapture(c *gin.Context) {
	vm, display, ok := s.captureKey(c)
	if !ok {
		return
	}
	started := s.captures.Start(vm.ID, display)
	status := http.StatusOK
	if started {
		status = http.StatusCreated
	}
	c.JSON(status, captureResponse{VMID: vm.ID, Display: display, Active: true, Changed: started})
}

// stopCapture works for VMs that are already gone from the cache.
func (s *server) stopCapture(c *gin.Context) {
	display, err := strconv.Atoi(c.Param("display"))
	if err != nil || display < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "display must be a non-negative integer"})
		return
	}
	id := c.Param("id")
	stopped := s.captures.Stop(id, display)
	c.JSON(http.StatusOK, captureResponse{VMID: id, Display: display, Changed: stopped})
}
