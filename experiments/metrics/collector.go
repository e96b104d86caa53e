package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	Sampler       string
	Goroutines    int
	Duration      time.Duration
	Episodes      int
	Timesteps     int
	JammedWorkers int
	Nodes         int
	FullyExplored bool
}

// TimestepsPerSecond is the simulation throughput of the whole search.
func (m SearchMetric) TimestepsPerSecond() float64 {
	if m.Duration <= 0 {
		return 0
	}
	return float64(m.Timesteps) / m.Duration.Seconds()
}

type Collector interface {
	Start(goroutines int, sampler string)
	AddEpisode()
	AddTimesteps(n int)
	AddJammed()
	SetTree(nodes int, fullyExplored bool)
	Complete() SearchMetric
}

type collector struct {
	goroutines    int
	sampler       string
	startTime     time.Time
	episodes      atomic.Int64
	timesteps     atomic.Int64
	jammed        atomic.Int32
	nodes         atomic.Int64
	fullyExplored atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start(goroutines int, sampler string) {
	m.startTime = time.Now()
	m.goroutines = goroutines
	m.sampler = sampler
	m.episodes.Store(0)
	m.timesteps.Store(0)
	m.jammed.Store(0)
}

func (m *collector) AddEpisode() {
	m.episodes.Add(1)
}

func (m *collector) AddTimesteps(n int) {
	m.timesteps.Add(int64(n))
}

func (m *collector) AddJammed() {
	m.jammed.Add(1)
}

func (m *collector) SetTree(nodes int, fullyExplored bool) {
	m.nodes.Store(int64(nodes))
	m.fullyExplored.Store(fullyExplored)
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Sampler:       m.sampler,
		Goroutines:    m.goroutines,
		Duration:      time.Since(m.startTime),
		Episodes:      int(m.episodes.Load()),
		Timesteps:     int(m.timesteps.Load()),
		JammedWorkers: int(m.jammed.Load()),
		Nodes:         int(m.nodes.Load()),
		FullyExplored: m.fullyExplored.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(goroutines int, sampler string)  {}
func (m *dummyCollector) AddEpisode()                           {}
func (m *dummyCollector) AddTimesteps(n int)                    {}
func (m *dummyCollector) AddJammed()                            {}
func (m *dummyCollector) SetTree(nodes int, fullyExplored bool) {}
func (m *dummyCollector) Complete() SearchMetric                { return SearchMetric{} }
