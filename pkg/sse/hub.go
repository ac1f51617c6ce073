package sse

import (
	"encoding/json"
	"sync"
)

// Hub 管理按用户名订阅的 SSE 客户端。
//
// 每个用户名对应一组客户端通道（chan []byte），任务状态变化、对话增量
// 都会广播到该用户的所有连接（多标签页场景）。channel 由连接方创建并
// 负责关闭，Hub 只负责投递。
type Hub struct {
	topics map[string]map[chan []byte]bool

	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan topicMessage

	mu sync.Mutex
}

type subscription struct {
	ch    chan []byte
	topic string
}

type topicMessage struct {
	topic string
	msg   []byte
}

var defaultHub *Hub

// Event 推送给前端的事件封皮
type Event struct {
	Type string      `json:"type"` // video_tasks / chat_delta / notice
	Data interface{} `json:"data"`
}

// NewHub 创建 Hub。publish 通道带缓冲（100），吸收短时突发的发布。
func NewHub() *Hub {
	return &Hub{
		topics:      make(map[string]map[chan []byte]bool),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan topicMessage, 100),
	}
}

// SetDefaultHub sets the package-level default hub
func SetDefaultHub(h *Hub) {
	defaultHub = h
}

// GetHub returns the default hub (may be nil if not set)
func GetHub() *Hub {
	return defaultHub
}

// Run 启动事件循环，应在单独的 goroutine 中运行：
//
//	hub := sse.NewHub()
//	go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.subscribe:
			h.mu.Lock()
			subs, ok := h.topics[s.topic]
			if !ok {
				subs = make(map[chan []byte]bool)
				h.topics[s.topic] = subs
			}
			subs[s.ch] = true
			h.mu.Unlock()
		case s := <-h.unsubscribe:
			h.mu.Lock()
			if subs, ok := h.topics[s.topic]; ok {
				delete(subs, s.ch)
				if len(subs) == 0 {
					delete(h.topics, s.topic)
				}
			}
			h.mu.Unlock()
		case tm := <-h.publish:
			h.mu.Lock()
			if subs, ok := h.topics[tm.topic]; ok {
				for ch := range subs {
					select {
					case ch <- tm.msg:
					default:
						// 客户端没在读就丢弃，不能阻塞分发循环
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishTopic 把消息投到指定用户的所有订阅连接
func (h *Hub) PublishTopic(topic string, msg []byte) {
	h.publish <- topicMessage{topic: topic, msg: msg}
}

// PublishEvent 序列化并投递一个事件，序列化失败直接丢弃
func (h *Hub) PublishEvent(topic string, typ string, data interface{}) {
	b, err := json.Marshal(Event{Type: typ, Data: data})
	if err != nil {
		return
	}
	h.PublishTopic(topic, b)
}

// Subscribe 注册订阅通道。调用方应提供有缓冲的 channel（例如缓冲 16），
// 并在断开时取消订阅并自行关闭，Hub 不会关闭订阅者的通道。
func (h *Hub) Subscribe(ch chan []byte, topic string) {
	h.subscribe <- subscription{ch: ch, topic: topic}
}

// Unsubscribe 取消订阅
func (h *Hub) Unsubscribe(ch chan []byte, topic string) {
	h.unsubscribe <- subscription{ch: ch, topic: topic}
}
