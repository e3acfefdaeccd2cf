package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/waybeam/crsfpwm/pkg/bridge"
	"github.com/waybeam/crsfpwm/pkg/status/msgs"
)

// BridgeType is the first topic level under the prefix.
const BridgeType = "waybeam-pwm"

// Topic names under <prefix><type>/<id>/.
const (
	TopicMeta    = "meta"
	TopicStatus  = "status"
	TopicStats   = "stats"
	TopicOutputs = "outputs"
)

// DefaultStatsInterval limits how often FrameStats are published.
const DefaultStatsInterval = time.Second

const pubQueueSize = 64

type publication struct {
	topic string
	msg   msgs.Message
}

// Reporter implements bridge.Observer by publishing status messages.
// Observer calls never block the session loop: messages are queued and
// published from Run, and dropped if the queue is full.
type Reporter struct {
	Queue         *Queue
	ID            string
	StatsInterval time.Duration

	metaJSON []byte
	pubCh    chan publication

	lock      sync.Mutex
	stats     msgs.FrameStats
	lastStats time.Time
	dropped   int
}

// NewReporter creates a Reporter publishing to brokerURL.
func NewReporter(brokerURL, id string, meta msgs.BridgeMeta) (*Reporter, error) {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	r := &Reporter{
		ID:            id,
		StatsInterval: DefaultStatsInterval,
		metaJSON:      metaJSON,
		pubCh:         make(chan publication, pubQueueSize),
	}
	opts.SetBinaryWill(topicPrefix+r.Topic(TopicMeta), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID(BridgeType + ":" + id)
	}
	r.Queue = NewQueue(opts, topicPrefix)
	r.Queue.OnConnect = func(*Queue) { r.onConnected() }
	return r, nil
}

// Topic returns the topic name relative to the queue prefix.
func (r *Reporter) Topic(name string) string {
	return BridgeType + "/" + r.ID + "/" + name
}

// Run implements Runnable.
func (r *Reporter) Run(ctx context.Context) error {
	r.Queue.Connect()
	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.publishStats()
			r.Queue.PubWith(r.Topic(TopicMeta), nil, 1, true).WaitTimeout(time.Second)
			r.Queue.Close()
			return ctx.Err()
		case pub := <-r.pubCh:
			r.publish(pub)
		}
	}
}

// DatagramReceived implements bridge.Observer.
func (r *Reporter) DatagramReceived(rep bridge.Report) {
	r.lock.Lock()
	s := &r.stats
	s.Datagrams++
	s.Bytes += uint64(rep.Bytes)
	s.Dropped += uint64(rep.Dropped)
	s.Candidates += uint64(rep.Stats.Candidates)
	s.Valid += uint64(rep.Stats.Valid)
	s.BadLength += uint64(rep.Stats.BadLength)
	s.BadCrc += uint64(rep.Stats.BadCRC)
	s.BadAddress += uint64(rep.Stats.BadAddress)
	s.RcFrames += uint64(rep.RCFrames)
	s.Ignored += uint64(rep.Ignored)
	due := rep.At.Sub(r.lastStats) >= r.StatsInterval
	var snapshot msgs.FrameStats
	if due {
		r.lastStats = rep.At
		snapshot = *s
		snapshot.TimestampMs = millis(rep.At)
	}
	r.lock.Unlock()
	if due {
		r.enqueue(TopicStats, &snapshot)
	}
}

// LinkChanged implements bridge.Observer.
func (r *Reporter) LinkChanged(ev bridge.LinkEvent) {
	r.enqueue(TopicStatus, &msgs.LinkStatus{
		State:       ev.State.String(),
		Reason:      ev.Reason.String(),
		AgeMs:       int64(ev.Age / time.Millisecond),
		TimestampMs: millis(ev.At),
	})
}

// OutputUpdated implements bridge.Observer.
func (r *Reporter) OutputUpdated(ev bridge.OutputEvent) {
	r.enqueue(TopicOutputs, &msgs.OutputStatus{
		Index:       uint32(ev.Index),
		Micros:      int32(ev.Micros),
		Requested:   int32(ev.Requested),
		TimestampMs: millis(ev.At),
	})
}

// Dropped returns the number of messages dropped on a full queue.
func (r *Reporter) Dropped() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.dropped
}

func (r *Reporter) enqueue(topic string, msg msgs.Message) {
	select {
	case r.pubCh <- publication{topic: topic, msg: msg}:
	default:
		r.lock.Lock()
		r.dropped++
		r.lock.Unlock()
		glog.V(1).Infof("status queue full, dropped %s", topic)
	}
}

func (r *Reporter) drain() {
	for {
		select {
		case pub := <-r.pubCh:
			r.publish(pub)
		default:
			return
		}
	}
}

func (r *Reporter) publishStats() {
	r.lock.Lock()
	snapshot := r.stats
	r.lock.Unlock()
	snapshot.TimestampMs = millis(time.Now())
	r.publish(publication{topic: TopicStats, msg: &snapshot})
}

func (r *Reporter) publish(pub publication) {
	typed, err := msgs.TypedFrom(pub.msg)
	if err != nil {
		glog.Errorf("encode %s: %v", pub.topic, err)
		return
	}
	data, err := typed.Encode()
	if err != nil {
		glog.Errorf("encode %s: %v", pub.topic, err)
		return
	}
	r.Queue.Pub(r.Topic(pub.topic), data)
}

func (r *Reporter) onConnected() {
	r.Queue.PubWith(r.Topic(TopicMeta), r.metaJSON, 1, true)
}

func millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
