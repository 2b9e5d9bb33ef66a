package util

import (
	"encoding/json"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/smart_house/state"
)

// ReportPublisher pushes the house report and every room report to MQTT on
// a fixed period. Reports are generated by a pool of workers fed from a
// queue, one job per room plus one for the whole house.
type ReportPublisher struct {
	houses    *HouseHolder
	queue     chan reportJob
	ticker    *time.Ticker
	stop      chan struct{}
	publish   func(topic string, retained bool, payload any) error
	onReport  func(report string, err error)
	workers   sync.WaitGroup
	tick      sync.WaitGroup
	Frequency int64 `mapstructure:"report_frequency"`
	Workers   int64 `mapstructure:"report_workers"`
	Snapshots bool  `mapstructure:"publish_snapshots"`
	mu        sync.Mutex
}

type reportJob struct {
	house *state.House
	room  string // empty for the house report
}

type roomAttributes struct {
	Report  string   `json:"report,omitempty"`
	Error   string   `json:"error,omitempty"`
	Devices []string `json:"devices"`
}

func MakeReportPublisher(houses *HouseHolder) *ReportPublisher {
	p := &ReportPublisher{houses: houses, publish: Publish}
	if err := Config.Unmarshal(p); err != nil {
		Logger.Error().Msgf("Error loading report publisher config: %v", err)
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	return p
}

// OnReport registers fn to receive every house report the publisher generates.
func (p *ReportPublisher) OnReport(fn func(report string, err error)) {
	p.onReport = fn
}

func (p *ReportPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.queue = make(chan reportJob, p.Workers*4)
	p.stop = make(chan struct{})
	for i := 0; i < int(p.Workers); i++ {
		p.workers.Add(1)
		go p.worker(p.queue)
	}
	if p.Frequency <= 0 {
		Logger.Info().Msg("periodic report publishing disabled")
		return
	}
	p.ticker = time.NewTicker(time.Duration(p.Frequency) * time.Second)
	p.tick.Add(1)
	go func(ticker *time.Ticker, stop chan struct{}) {
		defer p.tick.Done()
		for {
			select {
			case <-ticker.C:
				p.PublishNow()
			case <-stop:
				return
			}
		}
	}(p.ticker, p.stop)
}

// Stop halts the ticker and waits for queued jobs to finish.
func (p *ReportPublisher) Stop() {
	p.mu.Lock()
	if p.stop == nil {
		p.mu.Unlock()
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	close(p.stop)
	p.mu.Unlock()

	// the ticker goroutine may be inside PublishNow, which needs p.mu
	p.tick.Wait()

	p.mu.Lock()
	close(p.queue)
	p.queue = nil
	p.stop = nil
	p.mu.Unlock()
	p.workers.Wait()
}

// PublishNow queues a publish of the current house and all of its rooms.
func (p *ReportPublisher) PublishNow() {
	house := p.houses.House()
	if house == nil {
		Logger.Warn().Msg("no house loaded, nothing to publish")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue == nil {
		Logger.Warn().Msg("report publisher not running")
		return
	}
	p.queue <- reportJob{house: house}
	for _, room := range house.RoomNames() {
		p.queue <- reportJob{house: house, room: room}
	}
}

// RequestHandler answers report requests received over MQTT.
func (p *ReportPublisher) RequestHandler(client MQTT.Client, message MQTT.Message) {
	Logger.Debug().Msgf("report requested on %s", message.Topic())
	go p.PublishNow()
}

func (p *ReportPublisher) worker(jobs <-chan reportJob) {
	defer p.workers.Done()
	for job := range jobs {
		p.process(job)
	}
}

func (p *ReportPublisher) process(job reportJob) {
	if job.room == "" {
		p.processHouse(job.house)
	} else {
		p.processRoom(job.house, job.room)
	}
}

func (p *ReportPublisher) processHouse(house *state.House) {
	report, err := GenerateReport("house", house)
	if p.onReport != nil {
		p.onReport(report, err)
	}
	if err != nil {
		p.send(HouseTopic("report/error"), false, err.Error())
		return
	}
	p.send(HouseTopic("report"), true, report)
	if !p.Snapshots {
		return
	}
	snapshot, err := RenderReportPNG(report)
	if err != nil {
		Logger.Warn().Msgf("Unable to render report snapshot: %v", err)
		return
	}
	p.send(HouseTopic("report/snapshot"), true, snapshot)
}

func (p *ReportPublisher) processRoom(house *state.House, name string) {
	room, err := house.Room(name)
	if err != nil {
		Logger.Warn().Msgf("Skipping room report: %v", err)
		return
	}
	attrs := roomAttributes{Devices: room.DeviceNames()}
	status := "ok"
	report, err := GenerateReport("room", room)
	if err != nil {
		status = "error"
		attrs.Error = err.Error()
	} else {
		attrs.Report = report
		p.send(RoomTopic(name, "report"), true, report)
	}
	p.send(RoomTopic(name, "status"), true, status)
	data, err := json.Marshal(attrs)
	if err != nil {
		Logger.Error().Msgf("Error marshalling room attributes: %v", err)
		return
	}
	p.send(RoomTopic(name, "attributes"), true, string(data))
}

func (p *ReportPublisher) send(topic string, retained bool, payload any) {
	if err := p.publish(topic, retained, payload); err != nil {
		Logger.Warn().Msgf("Unable to publish to %s: %v", topic, err)
	}
}
