package gateway

// Broadcaster fans a message out to every connected client.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast queues data for every client. Clients whose queue is full miss
// the message. It returns the number of clients reached.
func (b *Broadcaster) Broadcast(data []byte) int {
	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	n := 0
	for client := range b.hub.clients {
		select {
		case client.send <- data:
			n++
		default:
		}
	}
	return n
}
