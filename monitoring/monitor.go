// Package monitoring turns a running simulation into a small web server
// so that counters, snapshots, and process resources can be inspected
// while the simulation runs. The server is read-only: it never mutates
// hierarchy state.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	// Enable profiling.
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/rowbuf/memsim/mem/cache"
	"github.com/rowbuf/memsim/mem/dram"
	"github.com/rowbuf/memsim/mem/region"
)

// A Component is anything the monitor can serialize by name.
type Component interface {
	Name() string
}

// Monitor exposes the memory hierarchy over HTTP.
type Monitor struct {
	portNumber  int
	openBrowser bool

	cache      *cache.Comp
	controller *dram.Comp
	table      *region.Table
	components []Component
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000
// are rejected and replaced with a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not allowed for the monitoring server, "+
				"using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser asks the monitor to open the local browser on start.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterCache registers the cache to be monitored.
func (m *Monitor) RegisterCache(c *cache.Comp) {
	m.cache = c
	m.components = append(m.components, c)
}

// RegisterController registers the memory controller to be monitored.
func (m *Monitor) RegisterController(c *dram.Comp) {
	m.controller = c
	m.components = append(m.components, c)
}

// RegisterRegionTable registers the region table to be monitored.
func (m *Monitor) RegisterRegionTable(t *region.Table) {
	m.table = t
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()
	r.HandleFunc("/api/counters", m.listCounters)
	r.HandleFunc("/api/cache", m.cacheSnapshot)
	r.HandleFunc("/api/dram", m.dramSnapshot)
	r.HandleFunc("/api/regions", m.listRegions)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := http.Serve(listener, nil)
		dieOnErr(err)
	}()

	if m.openBrowser {
		_ = browser.OpenURL(url + "/api/counters")
	}
}

type countersRsp struct {
	Cycle         uint64 `json:"cycle"`
	Reads         uint64 `json:"reads"`
	Writes        uint64 `json:"writes"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	BackingWrites uint64 `json:"backing_writes"`
	RowBufferHits uint64 `json:"row_buffer_hits"`
	Refreshes     uint64 `json:"refreshes"`
}

func (m *Monitor) listCounters(w http.ResponseWriter, _ *http.Request) {
	rsp := countersRsp{}

	if m.controller != nil {
		stats := m.controller.CurrentStats()
		rsp.Cycle = m.controller.CurrentCycle()
		rsp.RowBufferHits = stats.RowBufferHits
		rsp.Refreshes = stats.Refreshes
	}

	if m.cache != nil {
		stats := m.cache.CurrentStats()
		rsp.Reads = stats.Reads
		rsp.Writes = stats.Writes
		rsp.Hits = stats.Hits
		rsp.Misses = stats.Misses
		rsp.BackingWrites = stats.BackingWrites
	}

	writeJSON(w, rsp)
}

type cacheSnapshotRsp struct {
	Topology string              `json:"topology"`
	Sets     []cache.SetSnapshot `json:"sets"`
}

func (m *Monitor) cacheSnapshot(w http.ResponseWriter, _ *http.Request) {
	if m.cache == nil {
		http.Error(w, "no cache registered", http.StatusNotFound)
		return
	}

	writeJSON(w, cacheSnapshotRsp{
		Topology: m.cache.Topology(),
		Sets:     m.cache.Snapshot(),
	})
}

type dramSnapshotRsp struct {
	Topology string              `json:"topology"`
	Banks    []dram.BankSnapshot `json:"banks"`
}

func (m *Monitor) dramSnapshot(w http.ResponseWriter, _ *http.Request) {
	if m.controller == nil {
		http.Error(w, "no controller registered", http.StatusNotFound)
		return
	}

	writeJSON(w, dramSnapshotRsp{
		Topology: m.controller.Topology(),
		Banks:    m.controller.Snapshot(),
	})
}

func (m *Monitor) listRegions(w http.ResponseWriter, _ *http.Request) {
	if m.table == nil {
		http.Error(w, "no region table registered", http.StatusNotFound)
		return
	}

	type regionRsp struct {
		Name  string `json:"name"`
		Start uint64 `json:"start"`
		Size  uint64 `json:"size"`
		Perm  string `json:"perm"`
	}

	regions := m.table.Regions()
	rsp := make([]regionRsp, 0, len(regions))
	for _, r := range regions {
		rsp = append(rsp, regionRsp{
			Name:  r.Name,
			Start: r.Start,
			Size:  r.Size,
			Perm:  r.Perm.String(),
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listComponentDetails(
	w http.ResponseWriter,
	r *http.Request,
) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
